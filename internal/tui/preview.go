package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
)

// PreviewLines returns the label/value rows of the read-only reward view.
// storeName resolves the store id for display.
func PreviewLines(r reward.Reward, storeName func(int) string) [][2]string {
	return [][2]string{
		{"Name", r.Name},
		{"Store", storeName(r.StoreID)},
		{"Points", strconv.Itoa(r.Points)},
		{"Description", r.Description},
		{"Quota", r.QuotaLabel()},
		{"Validity", string(r.Validity)},
		{"Expiration", r.Expiration()},
	}
}

func (model Model) renderPreview(r reward.Reward) string {
	theme := model.theme
	lines := []string{theme.header().Render(r.Name), ""}
	for _, row := range PreviewLines(r, model.repo.StoreName) {
		lines = append(lines, theme.faint().Render(cell(row[0], 14))+row[1])
	}
	lines = append(lines, "", model.help.ShortHelpView([]key.Binding{
		key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}))
	return theme.box().Render(strings.Join(lines, "\n"))
}
