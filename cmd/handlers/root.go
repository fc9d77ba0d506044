/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

// Version is set at build time
var Version = "dev"

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trendpulse",
		Short: "TrendPulse scores African market trends for comms teams.",
		Long: `TrendPulse collects trend signals for African markets, merges and
classifies them, scores each one for comms relevance and risk, and
recommends an action. It also turns artist spikes and style signals into
trend-jack pitch cards and validates stored records.

Typical flow:
  trendpulse migrate up      # postgres only, sqlite creates its schema itself
  trendpulse run             # one pipeline run
  trendpulse trendjack       # refresh pitch cards
  trendpulse digest          # write the markdown digest
  trendpulse serve --schedule`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.trendpulse.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewScheduleCmd())
	rootCmd.AddCommand(NewTrendJackCmd())
	rootCmd.AddCommand(NewValidateCmd())
	rootCmd.AddCommand(NewHealthCmd())
	rootCmd.AddCommand(NewDigestCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewBrowseCmd())
	rootCmd.AddCommand(NewCleanupCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
