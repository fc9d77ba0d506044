package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"trendpulse/internal/core"
)

// SignalBundle is the on-disk format for pre-computed trend-jack signals.
type SignalBundle struct {
	ArtistSpikes []core.ArtistSpike `json:"artist_spikes"`
	StyleSignals []core.StyleSignal `json:"style_signals"`
}

// SignalFile loads artist spikes and style signals exported by upstream jobs.
type SignalFile struct {
	path string
}

// NewSignalFile creates a signal file reader.
func NewSignalFile(path string) *SignalFile {
	return &SignalFile{path: path}
}

// Load reads the bundle. Market codes are upper-cased and missing ids derived.
func (f *SignalFile) Load(ctx context.Context) (*SignalBundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrSourceUnavailable, f.path, err)
	}

	var bundle SignalBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}

	for i := range bundle.ArtistSpikes {
		s := &bundle.ArtistSpikes[i]
		s.Market = strings.ToUpper(s.Market)
		if s.ID == "" {
			s.ID = signalID("spike", s.ArtistName, s.Market, s.CollectedAt.UTC().Format("2006-01-02T15"))
		}
	}
	for i := range bundle.StyleSignals {
		s := &bundle.StyleSignals[i]
		for j := range s.Markets {
			s.Markets[j] = strings.ToUpper(s.Markets[j])
		}
		if s.ID == "" {
			s.ID = signalID(s.SourceURL, s.Headline)
		}
	}
	return &bundle, nil
}
