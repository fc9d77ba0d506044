package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"trendpulse/internal/core"
)

// FileAdapter reads trend items from a JSON drop file. The file holds either
// an array of items or an object with an "items" array.
type FileAdapter struct {
	path string
}

// NewFileAdapter creates a file adapter.
func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{path: path}
}

// Name returns the adapter name.
func (f *FileAdapter) Name() string { return "file" }

// Fetch loads items, keeping those in the requested markets. Items with no
// market are kept so the enricher can infer one.
func (f *FileAdapter) Fetch(ctx context.Context, targetMarkets, keywords []string) ([]core.TrendItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	items, err := decodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}

	out := make([]core.TrendItem, 0, len(items))
	for _, item := range items {
		if item.Source == "" {
			item.Source = f.Name()
		}
		if item.Market != "" && len(targetMarkets) > 0 && !containsFold(targetMarkets, item.Market) {
			continue
		}
		if !matchesKeywords(item.Title+" "+item.Text, keywords) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// HealthCheck reports whether the file is readable.
func (f *FileAdapter) HealthCheck(ctx context.Context) bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func decodeItems(data []byte) ([]core.TrendItem, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if strings.HasPrefix(string(data[:1]), "[") {
		var items []core.TrendItem
		err := json.Unmarshal(data, &items)
		return items, err
	}
	var wrapper struct {
		Items []core.TrendItem `json:"items"`
	}
	err := json.Unmarshal(data, &wrapper)
	return wrapper.Items, err
}
