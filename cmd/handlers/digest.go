package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trendpulse/internal/logger"
	"trendpulse/internal/messaging"
	"trendpulse/internal/persistence"
	"trendpulse/internal/render"
	"trendpulse/internal/summarize"
)

// NewDigestCmd creates the digest command
func NewDigestCmd() *cobra.Command {
	var (
		outputDir string
		top       int
		email     bool
		stdout    bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Write the markdown digest of current trends and pitch cards",
		Long: `Build the digest from the stored records and pitch cards and write it as
markdown to the output directory. With --email the digest is also sent to
the configured recipients.

Examples:
  trendpulse digest
  trendpulse digest --top 5 --output ./digests
  trendpulse digest --email`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd.Context(), outputDir, top, email, stdout)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default from config)")
	cmd.Flags().IntVar(&top, "top", 0, "records per section (default from config)")
	cmd.Flags().BoolVar(&email, "email", false, "send the digest by email")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the markdown instead of writing a file")

	return cmd
}

func runDigest(ctx context.Context, outputDir string, top int, email, stdout bool) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if outputDir == "" {
		outputDir = a.cfg.Output.Directory
	}
	if top <= 0 {
		top = a.cfg.Output.TopN
	}

	records, err := a.db.Trends().Query(ctx, persistence.TrendFilter{})
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	cards, err := a.db.PitchCards().List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load pitch cards: %w", err)
	}

	digest := summarize.BuildDigest(records, top, time.Now().UTC())
	markdown := render.Markdown(digest, cards)

	if stdout {
		fmt.Print(markdown)
	} else {
		path, err := render.RenderMarkdownDigest(digest, cards, outputDir)
		if err != nil {
			return fmt.Errorf("failed to write digest: %w", err)
		}
		fmt.Printf("%s %s\n", headerStyle.Render("Digest written to"), path)
	}

	if email {
		mailer := messaging.NewMailer(a.cfg.Email)
		if mailer == nil {
			return fmt.Errorf("email is not configured: set email.smtp.host and email.recipients")
		}
		if err := mailer.SendDigest(ctx, digest, markdown); err != nil {
			return fmt.Errorf("failed to send digest: %w", err)
		}
		logger.Info("Digest emailed", "recipients", len(a.cfg.Email.Recipients))
	}
	return nil
}
