package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
)

// Table column widths.
const (
	colName     = 28
	colStore    = 22
	colPoints   = 8
	colQuota    = 10
	colValidity = 9
)

func (model Model) handleListKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := model.keys
	switch {
	case key.Matches(message, keys.Quit):
		return model, tea.Quit

	case key.Matches(message, keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}
	case key.Matches(message, keys.Down):
		if model.cursor < len(model.result.Items)-1 {
			model.cursor++
		}
	case key.Matches(message, keys.PrevPage):
		model.gotoPage(model.page - 1)
	case key.Matches(message, keys.NextPage):
		model.gotoPage(model.page + 1)

	case key.Matches(message, keys.Search):
		model.searching = true
		return model, model.search.Focus()

	case key.Matches(message, keys.Add):
		if err := model.ctrl.AddNew(); err != nil {
			model.logger.Debug("add", "err", err)
			return model, nil
		}
		model.form = newForm(model.ctrl.State().Draft)

	case key.Matches(message, keys.Edit):
		if selected, ok := model.selected(); ok {
			if err := model.ctrl.Edit(selected); err != nil {
				model.logger.Debug("edit", "err", err)
				return model, nil
			}
			model.form = newForm(model.ctrl.State().Draft)
		}

	case key.Matches(message, keys.Duplicate):
		if selected, ok := model.selected(); ok {
			if err := model.ctrl.Duplicate(selected); err != nil {
				model.logger.Debug("duplicate", "err", err)
				return model, nil
			}
			model.form = newForm(model.ctrl.State().Draft)
		}

	case key.Matches(message, keys.Preview):
		if selected, ok := model.selected(); ok {
			if err := model.ctrl.Preview(selected); err != nil {
				model.logger.Debug("preview", "err", err)
			}
		}

	case key.Matches(message, keys.Delete):
		if selected, ok := model.selected(); ok && !model.busy {
			model.busy = true
			return model, model.remove(selected.ID)
		}

	case key.Matches(message, keys.Refresh):
		if !model.loading {
			model.loading = true
			return model, model.loadCatalog()
		}

	default:
		// Digits jump straight to a page button.
		if message.Type == tea.KeyRunes && len(message.Runes) == 1 {
			if n, err := strconv.Atoi(string(message.Runes)); err == nil && n > 0 {
				model.gotoPage(n)
			}
		}
	}
	return model, nil
}

func (model Model) handleSearchKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.SearchClear):
		model.search.SetValue("")
		model.leaveSearch()
		return model, nil
	case key.Matches(message, model.keys.SearchDone):
		model.leaveSearch()
		return model, nil
	}

	before := model.search.Value()
	var cmd tea.Cmd
	model.search, cmd = model.search.Update(message)
	if model.search.Value() != before {
		model.page = 1
		model.cursor = 0
		model.recompute()
	}
	return model, cmd
}

func (model *Model) leaveSearch() {
	model.searching = false
	model.search.Blur()
	model.page = 1
	model.cursor = 0
	model.recompute()
}

func (model *Model) gotoPage(page int) {
	model.page = page
	model.cursor = 0
	model.recompute()
}

func (model Model) renderList() string {
	theme := model.theme
	var sections []string

	title := theme.header().Render("Rewards")
	counts := theme.faint().Render(fmt.Sprintf(" %d of %d", model.result.Matched, model.result.Total))
	if model.loading {
		counts = theme.faint().Render(" loading...")
	}
	sections = append(sections, title+counts)

	if model.searching || model.search.Value() != "" {
		sections = append(sections, model.search.View())
	} else {
		sections = append(sections, theme.faint().Render("/ search"))
	}
	sections = append(sections, "")

	header := cell("Name", colName) + cell("Store", colStore) + cell("Points", colPoints) +
		cell("Quota", colQuota) + cell("Validity", colValidity)
	sections = append(sections, theme.header().Render(header))

	if len(model.result.Items) == 0 {
		sections = append(sections, theme.faint().Render("No rewards found."))
	}
	for i, r := range model.result.Items {
		row := model.renderRow(r)
		if i == model.cursor {
			row = theme.selected().Render(row)
		}
		sections = append(sections, row)
	}

	sections = append(sections, "", model.renderPageButtons())
	sections = append(sections, model.help.ShortHelpView(model.keys.listHelp()))
	return strings.Join(sections, "\n")
}

func (model Model) renderRow(r reward.Reward) string {
	validity := lipgloss.NewStyle().Foreground(model.theme.InstantBadge)
	if r.Validity == reward.ValidityLimited {
		validity = validity.Foreground(model.theme.LimitedBadge)
	}
	return cell(r.Name, colName) +
		cell(model.repo.StoreName(r.StoreID), colStore) +
		cell(strconv.Itoa(r.Points), colPoints) +
		cell(r.QuotaLabel(), colQuota) +
		validity.Render(cell(string(r.Validity), colValidity))
}

// renderPageButtons draws one button per page with the current page
// highlighted. An empty result shows no buttons.
func (model Model) renderPageButtons() string {
	if model.result.PageCount == 0 {
		return ""
	}
	buttons := make([]string, 0, model.result.PageCount)
	for p := 1; p <= model.result.PageCount; p++ {
		label := " " + strconv.Itoa(p) + " "
		if p == model.result.Page {
			label = model.theme.selected().Bold(true).Render(label)
		} else {
			label = model.theme.faint().Render(label)
		}
		buttons = append(buttons, label)
	}
	return strings.Join(buttons, " ")
}

// cell truncates s to width-1 display columns and pads it to width.
func cell(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(ansi.Truncate(s, width-1, "…"))
}
