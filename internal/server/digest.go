package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"trendpulse/internal/persistence"
	"trendpulse/internal/render"
	"trendpulse/internal/summarize"
)

var digestPage = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 820px; margin: 2rem auto; padding: 0 1rem; color: #1d1d1f; line-height: 1.5; }
h1 { border-bottom: 2px solid #1db954; padding-bottom: .3rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ddd; padding: .25rem .6rem; }
footer { margin-top: 3rem; color: #888; font-size: .85rem; }
</style>
</head>
<body>
{{.Body}}
<footer>Generated {{.GeneratedAt}}</footer>
</body>
</html>
`))

type digestView struct {
	Title       string
	Body        template.HTML
	GeneratedAt string
}

// handleDigest renders the current digest as HTML, or raw markdown with ?format=md
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := s.deps.DB.Trends().Query(ctx, persistence.TrendFilter{})
	if err != nil {
		s.log.Error("Failed to load trends for digest", "error", err)
		http.Error(w, "failed to load trends", http.StatusInternalServerError)
		return
	}
	cards, err := s.deps.DB.PitchCards().List(ctx, "")
	if err != nil {
		s.log.Error("Failed to load pitch cards for digest", "error", err)
		http.Error(w, "failed to load pitch cards", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	md := render.Markdown(summarize.BuildDigest(records, s.deps.TopN, now), cards)

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(md))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = digestPage.Execute(w, digestView{
		Title:       "TrendPulse Digest - " + now.Format("2006-01-02"),
		Body:        renderMarkdown(md),
		GeneratedAt: now.Format(time.RFC1123),
	})
	if err != nil {
		s.log.Error("Failed to render digest page", "error", err)
	}
}

// renderMarkdown converts markdown text to HTML, returning it as template.HTML for safe rendering.
// Configures parser with common extensions and HTML options for external links.
func renderMarkdown(text string) template.HTML {
	if text == "" {
		return template.HTML("")
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: htmlFlags,
	})

	return template.HTML(markdown.ToHTML([]byte(text), mdParser, renderer))
}
