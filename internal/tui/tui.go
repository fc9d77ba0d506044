package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"trendpulse/internal/core"
	"trendpulse/internal/markets"
)

type view int

const (
	viewTrends view = iota
	viewCards
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1DB954"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#1DB954"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	riskStyles    = map[core.RiskLevel]lipgloss.Style{
		core.RiskHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		core.RiskMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")),
		core.RiskLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")),
	}
)

// model is the browser state. Records and cards are loaded up front.
type model struct {
	records     []core.TrendRecord
	cards       []core.PitchCard
	markets     []string // "" means all markets
	marketIdx   int
	view        view
	selectedIdx int
	width       int
	height      int
	quitting    bool
}

// InitialModel returns the browser state for the given records and cards.
func InitialModel(records []core.TrendRecord, cards []core.PitchCard) model {
	seen := map[string]bool{}
	for _, r := range records {
		seen[r.Trend.Market] = true
	}
	for _, c := range cards {
		seen[c.Market] = true
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		if code != "" {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	return model{
		records: records,
		cards:   cards,
		markets: append([]string{""}, codes...),
		width:   100,
		height:  30,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		case "down", "j":
			if m.selectedIdx < m.count()-1 {
				m.selectedIdx++
			}
		case "tab":
			if m.view == viewTrends {
				m.view = viewCards
			} else {
				m.view = viewTrends
			}
			m.selectedIdx = 0
		case "m":
			m.marketIdx = (m.marketIdx + 1) % len(m.markets)
			m.selectedIdx = 0
		}
	}

	return m, nil
}

func (m model) market() string {
	return m.markets[m.marketIdx]
}

func (m model) visibleRecords() []core.TrendRecord {
	if m.market() == "" {
		return m.records
	}
	var out []core.TrendRecord
	for _, r := range m.records {
		if r.Trend.Market == m.market() {
			out = append(out, r)
		}
	}
	return out
}

func (m model) visibleCards() []core.PitchCard {
	if m.market() == "" {
		return m.cards
	}
	var out []core.PitchCard
	for _, c := range m.cards {
		if c.Market == m.market() {
			out = append(out, c)
		}
	}
	return out
}

func (m model) count() int {
	if m.view == viewCards {
		return len(m.visibleCards())
	}
	return len(m.visibleRecords())
}

func (m model) View() string {
	if m.quitting {
		return "Bye.\n"
	}

	paneWidth := m.width/2 - 5
	if paneWidth < 20 {
		paneWidth = 20
	}
	docStyle := lipgloss.NewStyle().Margin(1, 2)
	listStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(paneWidth)
	detailStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(paneWidth)

	scope := "All markets"
	if m.market() != "" {
		scope = markets.Name(m.market())
	}

	var list, detail string
	if m.view == viewCards {
		list, detail = m.cardPanes()
		list = titleStyle.Render("Pitch cards · "+scope) + "\n\n" + list
	} else {
		list, detail = m.trendPanes()
		list = titleStyle.Render("Trends · "+scope) + "\n\n" + list
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, listStyle.Render(list), detailStyle.Render(detail))
	help := mutedStyle.Render("\n[↑/k] Up | [↓/j] Down | [tab] Trends/Cards | [m] Market | [q] Quit")
	return docStyle.Render(main + help)
}

func (m model) trendPanes() (string, string) {
	records := m.visibleRecords()
	if len(records) == 0 {
		return "No trends loaded.", ""
	}

	var list strings.Builder
	for i, r := range records {
		line := fmt.Sprintf("%5.1f %s %s", r.Breakdown.Total, r.Trend.Market, r.Trend.Title)
		if i == m.selectedIdx {
			line = selectedStyle.Render(line)
		}
		list.WriteString(line + "\n")
	}

	r := records[m.selectedIdx]
	b := r.Breakdown
	var detail strings.Builder
	detail.WriteString(titleStyle.Render(r.Trend.Title) + "\n\n")
	fmt.Fprintf(&detail, "%s · %s · %s\n", markets.Name(r.Trend.Market), r.Summary.TopicDisplay, humanize.Time(r.UpdatedAt))
	fmt.Fprintf(&detail, "Score %.1f  %s  %s priority\n", b.Total, b.Action, b.Priority)
	detail.WriteString(riskStyles[b.RiskLevel].Render(fmt.Sprintf("Risk %s (%.0f)", b.RiskLevel, b.Risk)) + "\n\n")
	if r.Summary.WhatsHappening != "" {
		detail.WriteString(r.Summary.WhatsHappening + "\n\n")
	}
	for _, why := range r.Summary.WhyItMatters {
		detail.WriteString("• " + why + "\n")
	}
	if r.Summary.NextStep != "" {
		detail.WriteString("\nNext: " + r.Summary.NextStep + "\n")
	}
	return list.String(), detail.String()
}

func (m model) cardPanes() (string, string) {
	cards := m.visibleCards()
	if len(cards) == 0 {
		return "No pitch cards loaded.", ""
	}

	var list strings.Builder
	for i, c := range cards {
		line := fmt.Sprintf("[%s] %s %s", c.Confidence, c.Market, c.Hook)
		if i == m.selectedIdx {
			line = selectedStyle.Render(line)
		}
		list.WriteString(line + "\n")
	}

	c := cards[m.selectedIdx]
	var detail strings.Builder
	detail.WriteString(titleStyle.Render(c.Hook) + "\n\n")
	fmt.Fprintf(&detail, "%s · %s confidence\n\n", markets.Name(c.Market), c.Confidence)
	if c.Angle != "" {
		detail.WriteString(c.Angle + "\n\n")
	}
	for _, why := range c.WhyNow {
		detail.WriteString("• " + why + "\n")
	}
	if len(c.NextSteps) > 0 {
		detail.WriteString("\nNext steps:\n")
		for _, step := range c.NextSteps {
			detail.WriteString("  - " + step + "\n")
		}
	}
	if !c.ExpiresAt.IsZero() {
		detail.WriteString(mutedStyle.Render("\nExpires "+humanize.Time(c.ExpiresAt)) + "\n")
	}
	return list.String(), detail.String()
}

// StartTUI runs the browser until the user quits.
func StartTUI(records []core.TrendRecord, cards []core.PitchCard) error {
	p := tea.NewProgram(InitialModel(records, cards), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
