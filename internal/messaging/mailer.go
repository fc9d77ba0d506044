package messaging

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
	gomail "gopkg.in/mail.v2"

	"trendpulse/internal/config"
	"trendpulse/internal/logger"
	"trendpulse/internal/markets"
	"trendpulse/internal/summarize"
)

// Mailer sends the digest by SMTP
type Mailer struct {
	cfg    config.Email
	dialer *gomail.Dialer
}

// NewMailer returns nil when SMTP or recipients are not configured.
func NewMailer(cfg config.Email) *Mailer {
	if cfg.SMTP.Host == "" || len(cfg.Recipients) == 0 {
		return nil
	}
	port := cfg.SMTP.Port
	if port == 0 {
		port = 587
	}
	dialer := gomail.NewDialer(cfg.SMTP.Host, port, cfg.SMTP.Username, cfg.SMTP.Password)
	dialer.Timeout = 10 * time.Second
	return &Mailer{cfg: cfg, dialer: dialer}
}

// DigestMessage builds the email for a digest with an HTML body and the
// markdown text as plain fallback.
func (m *Mailer) DigestMessage(d summarize.Digest, markdown string) (*gomail.Message, error) {
	html, err := RenderDigestHTML(d)
	if err != nil {
		return nil, err
	}
	msg := gomail.NewMessage()
	if m.cfg.FromName != "" {
		msg.SetAddressHeader("From", m.cfg.FromAddress, m.cfg.FromName)
	} else {
		msg.SetHeader("From", m.cfg.FromAddress)
	}
	msg.SetHeader("To", m.cfg.Recipients...)
	msg.SetHeader("Subject", DigestSubject(d))
	msg.SetBody("text/plain", markdown)
	msg.AddAlternative("text/html", html)
	return msg, nil
}

// SendDigest emails the digest to every recipient.
func (m *Mailer) SendDigest(ctx context.Context, d summarize.Digest, markdown string) error {
	if m == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.DigestMessage(d, markdown)
	if err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send digest email: %w", err)
	}
	logger.Info("Digest email sent", "recipients", len(m.cfg.Recipients), "trends", d.Total)
	return nil
}

// DigestSubject returns the email subject line.
func DigestSubject(d summarize.Digest) string {
	return fmt.Sprintf("TrendPulse digest %s: %d risks, %d opportunities",
		d.GeneratedAt.UTC().Format("Jan 2"), len(d.Risks), len(d.Opportunities))
}

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"market": markets.Name,
	"comma":  func(n int) string { return humanize.Comma(int64(n)) },
	"score":  func(f float64) string { return fmt.Sprintf("%.0f", f) },
}).Parse(`{{define "record"}}
    <div class="card{{if eq .Breakdown.RiskLevel "high"}} risk-high{{end}}">
      <strong>{{.Trend.Title}}</strong>
      <div class="meta">{{.Breakdown.Action}} · {{market .Trend.Market}} · {{.Summary.TopicDisplay}} · score {{score .Breakdown.Total}} · {{.Breakdown.RiskLevel}} risk</div>
      <p>{{.Summary.WhatsHappening}}</p>
      {{- if .Summary.NextStep}}<p><em>{{.Summary.NextStep}}</em></p>{{end}}
    </div>
{{- end}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style type="text/css">
  body { margin: 0; padding: 0; background-color: #f8fafc; font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif; color: #1e293b; line-height: 1.6; }
  .container { max-width: 640px; margin: 0 auto; background-color: #ffffff; border: 1px solid #e2e8f0; border-radius: 8px; overflow: hidden; }
  .header { background-color: #1db954; color: #ffffff; padding: 24px; text-align: center; }
  .header h1 { margin: 0; font-size: 24px; }
  .content { padding: 24px; }
  h2 { font-size: 18px; border-bottom: 2px solid #e2e8f0; padding-bottom: 6px; margin: 28px 0 12px 0; }
  .card { background-color: #f8fafc; border: 1px solid #e2e8f0; border-radius: 6px; padding: 14px; margin: 10px 0; }
  .meta { font-size: 13px; color: #64748b; }
  .risk-high { border-left: 4px solid #dc2626; }
  .footer { background-color: #f1f5f9; padding: 16px; text-align: center; font-size: 13px; color: #64748b; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>TrendPulse Digest</h1>
    <div>{{.GeneratedAt.Format "Monday, January 2 2006 15:04 MST"}} · {{comma .Total}} trends</div>
  </div>
  <div class="content">
  {{- if .Risks}}
    <h2>Risks</h2>
    {{- range .Risks}}{{template "record" .}}{{end}}
  {{- end}}
  {{- if .Opportunities}}
    <h2>Opportunities</h2>
    {{- range .Opportunities}}{{template "record" .}}{{end}}
  {{- end}}
  {{- if .Watchlist}}
    <h2>Watchlist</h2>
    {{- range .Watchlist}}{{template "record" .}}{{end}}
  {{- end}}
  {{- if not .Top}}
    <p>No trends were recorded for this period.</p>
  {{- end}}
  </div>
  <div class="footer">Generated by TrendPulse</div>
</div>
</body>
</html>
`))

// RenderDigestHTML renders the digest email body.
func RenderDigestHTML(d summarize.Digest) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render digest email: %w", err)
	}
	return buf.String(), nil
}
