package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ipcheck/ipcheck/pkg/scrape"
)

// ProviderRow is one provider's section of a card.
type ProviderRow struct {
	Provider scrape.Provider
	URL      string
	Result   *scrape.Result
}

// RenderCard renders the lookup card for ip: the address category and one
// section per provider with its score painted in the result's color. A nil
// result renders as pending.
func RenderCard(ip, category string, rows []ProviderRow) string {
	var b strings.Builder
	b.WriteString(CardTitleStyle.Render(ip))
	if category != "" {
		b.WriteString("  ")
		b.WriteString(MutedStyle.Render(category))
	}

	for _, row := range rows {
		res := row.Result
		if res == nil {
			res = &scrape.Result{Score: scrape.ScorePending, Color: string(Muted)}
		}
		b.WriteString("\n\n")
		b.WriteString(SectionStyle.UnsetMarginTop().Render(row.Provider.DisplayName()))
		b.WriteString("\n")
		line(&b, "Score", ScoreStyle(res.Color).Render(res.Score))
		line(&b, "Reports", res.Reports)
		line(&b, "Country", res.Country)
		line(&b, "Domain", res.Domain)
		line(&b, "Last analysis", res.Date)
		if row.URL != "" {
			line(&b, "Open", LinkStyle.Render(row.URL))
		}
	}
	return CardStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func line(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, CardLabelStyle.Render(label), value))
	b.WriteString("\n")
}

// RenderRejected renders the one-line notice for an address that is not
// looked up.
func RenderRejected(ip, category string) string {
	return WarningStyle.Render(ip) + "  " + MutedStyle.Render(category+", not looked up")
}
