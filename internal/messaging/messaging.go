// Package messaging delivers trend alerts, pitch cards and digests to chat
// webhooks, Kafka topics and email.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/markets"
)

// MessagePlatform represents different messaging platforms
type MessagePlatform string

const (
	PlatformSlack   MessagePlatform = "slack"
	PlatformDiscord MessagePlatform = "discord"
)

const maxAlertItems = 10

// SlackMessage represents a Slack message structure
type SlackMessage struct {
	Text      string       `json:"text,omitempty"`
	Blocks    []SlackBlock `json:"blocks,omitempty"`
	Username  string       `json:"username,omitempty"`
	IconEmoji string       `json:"icon_emoji,omitempty"`
}

// SlackBlock represents a Slack block kit element
type SlackBlock struct {
	Type     string       `json:"type"`
	Text     *SlackText   `json:"text,omitempty"`
	Elements []*SlackText `json:"elements,omitempty"`
}

// SlackText represents text in Slack blocks
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DiscordMessage represents a Discord message structure
type DiscordMessage struct {
	Content  string         `json:"content,omitempty"`
	Username string         `json:"username,omitempty"`
	Embeds   []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

// DiscordEmbedField represents fields in Discord embeds
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordEmbedFooter represents footer in Discord embeds
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// Notifier posts escalation alerts and pitch cards to chat webhooks
type Notifier struct {
	SlackWebhookURL   string
	DiscordWebhookURL string
	Username          string
	HTTPClient        *http.Client
	actions           map[core.Action]bool
}

// NewNotifier creates a notifier from configuration
func NewNotifier(cfg config.Messaging) *Notifier {
	timeout := 30 * time.Second
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}
	actions := make(map[core.Action]bool)
	for _, a := range cfg.NotifyActions {
		actions[core.Action(strings.ToUpper(strings.TrimSpace(a)))] = true
	}
	if len(actions) == 0 {
		actions[core.ActionEscalate] = true
	}
	username := cfg.Slack.Username
	if username == "" {
		username = "TrendPulse"
	}
	return &Notifier{
		SlackWebhookURL:   cfg.Slack.WebhookURL,
		DiscordWebhookURL: cfg.Discord.WebhookURL,
		Username:          username,
		HTTPClient:        &http.Client{Timeout: timeout},
		actions:           actions,
	}
}

// Enabled reports whether any webhook is configured
func (n *Notifier) Enabled() bool {
	return n.SlackWebhookURL != "" || n.DiscordWebhookURL != ""
}

// Alertable returns the records whose action triggers a notification,
// highest score first as given.
func (n *Notifier) Alertable(records []core.TrendRecord) []core.TrendRecord {
	var out []core.TrendRecord
	for _, r := range records {
		if n.actions[r.Breakdown.Action] {
			out = append(out, r)
		}
	}
	return out
}

// NotifyTrends sends alerts for records with a notifying action. Every
// configured platform is attempted; the first error is returned.
func (n *Notifier) NotifyTrends(ctx context.Context, records []core.TrendRecord) error {
	alerts := n.Alertable(records)
	if len(alerts) == 0 || !n.Enabled() {
		return nil
	}
	title := fmt.Sprintf("%s trends need comms attention", humanize.Comma(int64(len(alerts))))
	if len(alerts) == 1 {
		title = "1 trend needs comms attention"
	}
	return n.send(ctx, TrendsSlackMessage(alerts, title, n.Username), TrendsDiscordMessage(alerts, title, n.Username))
}

// NotifyCards announces freshly generated high-confidence pitch cards.
func (n *Notifier) NotifyCards(ctx context.Context, cards []core.PitchCard) error {
	var high []core.PitchCard
	for _, c := range cards {
		if c.Confidence == core.ConfidenceHigh {
			high = append(high, c)
		}
	}
	if len(high) == 0 || !n.Enabled() {
		return nil
	}
	return n.send(ctx, CardsSlackMessage(high, n.Username), CardsDiscordMessage(high, n.Username))
}

func (n *Notifier) send(ctx context.Context, slack *SlackMessage, discord *DiscordMessage) error {
	var firstErr error
	if n.SlackWebhookURL != "" {
		if err := n.SendSlackMessage(ctx, slack); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if n.DiscordWebhookURL != "" {
		if err := n.SendDiscordMessage(ctx, discord); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func trendLine(r core.TrendRecord) string {
	b := r.Breakdown
	return fmt.Sprintf("%s · %s · score %.0f · %s risk", b.Action, markets.Name(r.Trend.Market), b.Total, b.RiskLevel)
}

// TrendsSlackMessage formats trend alerts as Slack blocks
func TrendsSlackMessage(records []core.TrendRecord, title, username string) *SlackMessage {
	blocks := []SlackBlock{
		{Type: "header", Text: &SlackText{Type: "plain_text", Text: title}},
		{Type: "divider"},
	}

	var text strings.Builder
	for i, r := range records {
		if i >= maxAlertItems {
			break
		}
		fmt.Fprintf(&text, "• *%s*\n%s\n", r.Trend.Title, trendLine(r))
		if next := r.Summary.NextStep; next != "" {
			fmt.Fprintf(&text, "_%s_\n", next)
		}
		text.WriteString("\n")
	}
	blocks = append(blocks, SlackBlock{Type: "section", Text: &SlackText{Type: "mrkdwn", Text: text.String()}})

	if len(records) > maxAlertItems {
		blocks = append(blocks, SlackBlock{
			Type:     "context",
			Elements: []*SlackText{{Type: "mrkdwn", Text: fmt.Sprintf("and %d more", len(records)-maxAlertItems)}},
		})
	}

	return &SlackMessage{Text: title, Blocks: blocks, Username: username, IconEmoji: ":rotating_light:"}
}

// TrendsDiscordMessage formats trend alerts as a Discord embed
func TrendsDiscordMessage(records []core.TrendRecord, title, username string) *DiscordMessage {
	var fields []DiscordEmbedField
	for i, r := range records {
		if i >= maxAlertItems {
			break
		}
		value := trendLine(r)
		if next := r.Summary.NextStep; next != "" {
			value += "\n" + next
		}
		fields = append(fields, DiscordEmbedField{Name: r.Trend.Title, Value: value})
	}
	return &DiscordMessage{
		Username: username,
		Embeds: []DiscordEmbed{{
			Title:  title,
			Color:  0xdc2626,
			Fields: fields,
			Footer: &DiscordEmbedFooter{Text: fmt.Sprintf("%d alerts", len(records))},
		}},
	}
}

func cardLine(c core.PitchCard) string {
	return fmt.Sprintf("%s · %s confidence · expires %s", markets.Name(c.Market), c.Confidence, humanize.Time(c.ExpiresAt))
}

// CardsSlackMessage formats pitch cards as Slack blocks
func CardsSlackMessage(cards []core.PitchCard, username string) *SlackMessage {
	title := "New trend-jack pitch cards"
	blocks := []SlackBlock{{Type: "header", Text: &SlackText{Type: "plain_text", Text: title}}}
	for i, c := range cards {
		if i >= maxAlertItems {
			break
		}
		text := fmt.Sprintf("*%s*\n%s\n%s", c.Hook, cardLine(c), c.Angle)
		blocks = append(blocks, SlackBlock{Type: "section", Text: &SlackText{Type: "mrkdwn", Text: text}})
	}
	return &SlackMessage{Text: title, Blocks: blocks, Username: username, IconEmoji: ":sparkles:"}
}

// CardsDiscordMessage formats pitch cards as a Discord embed
func CardsDiscordMessage(cards []core.PitchCard, username string) *DiscordMessage {
	var fields []DiscordEmbedField
	for i, c := range cards {
		if i >= maxAlertItems {
			break
		}
		fields = append(fields, DiscordEmbedField{Name: c.Hook, Value: cardLine(c) + "\n" + c.Angle})
	}
	return &DiscordMessage{
		Username: username,
		Embeds:   []DiscordEmbed{{Title: "New trend-jack pitch cards", Color: 0x10b981, Fields: fields}},
	}
}

// SendSlackMessage sends a message to Slack webhook
func (n *Notifier) SendSlackMessage(ctx context.Context, message *SlackMessage) error {
	if n.SlackWebhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}
	return n.post(ctx, PlatformSlack, n.SlackWebhookURL, message, http.StatusOK)
}

// SendDiscordMessage sends a message to Discord webhook
func (n *Notifier) SendDiscordMessage(ctx context.Context, message *DiscordMessage) error {
	if n.DiscordWebhookURL == "" {
		return fmt.Errorf("discord webhook URL not configured")
	}
	return n.post(ctx, PlatformDiscord, n.DiscordWebhookURL, message, http.StatusOK, http.StatusNoContent)
}

func (n *Notifier) post(ctx context.Context, platform MessagePlatform, url string, message any, accepted ...int) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", platform, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", platform, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s message: %w", platform, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s webhook returned status %d: %s", platform, resp.StatusCode, string(body))
}

// ValidateWebhookURL validates if a webhook URL is properly formatted
func ValidateWebhookURL(platform MessagePlatform, url string) error {
	if url == "" {
		return fmt.Errorf("%s webhook URL cannot be empty", platform)
	}

	switch platform {
	case PlatformSlack:
		if !strings.Contains(url, "hooks.slack.com") {
			return fmt.Errorf("invalid Slack webhook URL format")
		}
	case PlatformDiscord:
		if !strings.Contains(url, "discord.com/api/webhooks") {
			return fmt.Errorf("invalid Discord webhook URL format")
		}
	default:
		return fmt.Errorf("unknown platform: %s", platform)
	}

	return nil
}
