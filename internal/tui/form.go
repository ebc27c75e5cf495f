package tui

import (
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
	"github.com/wondertwin-ai/rewardcatalog/internal/workflow"
)

// formField identifies one row of the reward form, in display order.
type formField int

const (
	fieldName formField = iota
	fieldDescription
	fieldPoints
	fieldQuota
	fieldValidity
	fieldNeverExpire
	fieldExpiration
	fieldStore
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldName:        "Name",
	fieldDescription: "Description",
	fieldPoints:      "Points",
	fieldQuota:       "Quota",
	fieldValidity:    "Validity",
	fieldNeverExpire: "Never expire",
	fieldExpiration:  "Expiration date",
	fieldStore:       "Store",
}

var fieldWire = [fieldCount]reward.Field{
	fieldName:        reward.FieldName,
	fieldDescription: reward.FieldDescription,
	fieldPoints:      reward.FieldPoints,
	fieldQuota:       reward.FieldQuota,
	fieldValidity:    reward.FieldValidity,
	fieldNeverExpire: reward.FieldNeverExpire,
	fieldExpiration:  reward.FieldExpirationDate,
	fieldStore:       reward.FieldStoreID,
}

func (f formField) isText() bool {
	switch f {
	case fieldName, fieldDescription, fieldPoints, fieldQuota, fieldExpiration:
		return true
	}
	return false
}

func (f formField) isNumeric() bool {
	return f == fieldPoints || f == fieldQuota
}

// form holds the text inputs of an open form. Toggles and the store are
// read straight from the controller's draft.
type form struct {
	inputs [fieldCount]textinput.Model
	focus  formField
}

func newForm(draft reward.Reward) form {
	var f form
	values := map[formField]string{
		fieldName:        draft.Name,
		fieldDescription: draft.Description,
		fieldPoints:      numberText(draft.Points),
		fieldQuota:       strconv.Itoa(draft.Quota),
		fieldExpiration:  draft.ExpirationDate,
	}
	for field, value := range values {
		in := textinput.New()
		in.Prompt = ""
		in.SetValue(value)
		switch {
		case field.isNumeric():
			in.CharLimit = 9
		case field == fieldExpiration:
			in.CharLimit = 10
			in.Placeholder = "YYYY-MM-DD"
		default:
			in.CharLimit = 200
		}
		f.inputs[field] = in
	}
	f.setFocus(fieldName)
	return f
}

func numberText(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func (f *form) setFocus(field formField) {
	if f.focus.isText() {
		f.inputs[f.focus].Blur()
	}
	f.focus = field
	if field.isText() {
		f.inputs[field].Focus()
	}
}

// visible reports whether field is shown for draft. The expiration date is
// only asked for when the reward expires.
func visible(field formField, draft reward.Reward) bool {
	return field != fieldExpiration || !draft.NeverExpire
}

// move shifts focus by delta, wrapping and skipping hidden fields.
func (f *form) move(delta int, draft reward.Reward) {
	next := f.focus
	for range fieldCount {
		next = (next + formField(delta) + fieldCount) % fieldCount
		if visible(next, draft) {
			break
		}
	}
	f.setFocus(next)
}

// focusFirstError moves focus to the first visible field with an error.
func (f *form) focusFirstError(errs reward.FieldErrors, draft reward.Reward) {
	for field := fieldName; field < fieldCount; field++ {
		if _, bad := errs[fieldWire[field]]; bad && visible(field, draft) {
			f.setFocus(field)
			return
		}
	}
}

// textPatch converts the current text of field into a draft change.
func textPatch(field formField, value string) reward.Patch {
	switch field {
	case fieldName:
		return reward.SetName(value)
	case fieldDescription:
		return reward.SetDescription(value)
	case fieldPoints:
		n, _ := strconv.Atoi(value)
		return reward.SetPoints(n)
	case fieldQuota:
		n, _ := strconv.Atoi(value)
		return reward.SetQuota(n)
	case fieldExpiration:
		return reward.SetExpirationDate(strings.TrimSpace(value))
	}
	return nil
}

func digitsOnly(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (model Model) handleFormKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := model.keys
	draft := model.ctrl.State().Draft
	focus := model.form.focus

	switch {
	case key.Matches(message, keys.Cancel):
		if err := model.ctrl.Cancel(); err != nil {
			model.logger.Debug("cancel", "err", err)
		}
		model.form = form{}
		return model, nil

	case key.Matches(message, keys.Submit):
		if model.busy {
			return model, nil
		}
		model.busy = true
		return model, model.submit()

	case key.Matches(message, keys.NextField):
		model.form.move(1, draft)
		return model, nil

	case key.Matches(message, keys.PrevField):
		model.form.move(-1, draft)
		return model, nil
	}

	if !focus.isText() {
		var patch reward.Patch
		forward := key.Matches(message, keys.Toggle)
		backward := key.Matches(message, keys.CycleBack)
		if !forward && !backward {
			return model, nil
		}
		switch focus {
		case fieldValidity:
			step := 1
			if backward {
				step = -1
			}
			patch = reward.SetValidity(cycleValidity(draft.Validity, step))
		case fieldNeverExpire:
			patch = reward.SetNeverExpire(!draft.NeverExpire)
		case fieldStore:
			step := 1
			if backward {
				step = -1
			}
			id, ok := cycleStore(model.repo.Stores(), draft.StoreID, step)
			if !ok {
				return model, nil
			}
			patch = reward.SetStore(id)
		}
		model.change(patch)
		return model, nil
	}

	if focus.isNumeric() && message.Type == tea.KeyRunes && !digitsOnly(message.Runes) {
		return model, nil
	}
	before := model.form.inputs[focus].Value()
	var cmd tea.Cmd
	model.form.inputs[focus], cmd = model.form.inputs[focus].Update(message)
	if value := model.form.inputs[focus].Value(); value != before {
		model.change(textPatch(focus, value))
	}
	return model, cmd
}

func (model Model) change(patch reward.Patch) {
	if patch == nil {
		return
	}
	if err := model.ctrl.Change(patch); err != nil {
		model.logger.Debug("change", "field", patch.Field(), "err", err)
	}
}

// cycleStore returns the store after (or before, for a negative step) the
// one with id current. An unknown current id starts at the first store.
func cycleStore(stores []reward.Store, current, step int) (int, bool) {
	if len(stores) == 0 {
		return 0, false
	}
	index := -1
	for i, s := range stores {
		if s.ID == current {
			index = i
			break
		}
	}
	if index < 0 {
		return stores[0].ID, true
	}
	n := len(stores)
	return stores[((index+step)%n+n)%n].ID, true
}

// cycleValidity steps through reward.Validities, wrapping at either end.
func cycleValidity(current reward.Validity, step int) reward.Validity {
	n := len(reward.Validities)
	index := slices.Index(reward.Validities, current)
	if index < 0 {
		return reward.Validities[0]
	}
	return reward.Validities[((index+step)%n+n)%n]
}

func (model Model) renderForm(state workflow.State) string {
	theme := model.theme
	draft := state.Draft

	title := "Update Reward"
	if draft.IsDraft() {
		title = "Create Reward"
	}
	lines := []string{theme.header().Render(title), ""}

	for field := fieldName; field < fieldCount; field++ {
		if !visible(field, draft) {
			continue
		}
		marker := "  "
		if field == model.form.focus {
			marker = "> "
		}
		label := cell(fieldLabels[field], 18)

		var value string
		switch field {
		case fieldValidity:
			value = choiceText(reward.Validities, draft.Validity)
		case fieldNeverExpire:
			value = "[ ]"
			if draft.NeverExpire {
				value = "[x]"
			}
		case fieldStore:
			value = "‹ " + model.repo.StoreName(draft.StoreID) + " ›"
		default:
			value = model.form.inputs[field].View()
		}
		lines = append(lines, marker+label+value)

		if msg, bad := state.Errors[fieldWire[field]]; bad {
			lines = append(lines, "  "+cell("", 18)+theme.errorText().Render(msg))
		}
	}

	lines = append(lines, "")
	if state.Submitting {
		lines = append(lines, theme.faint().Render("Saving..."))
	}
	lines = append(lines, model.help.ShortHelpView(model.keys.formHelp()))
	return theme.box().Render(strings.Join(lines, "\n"))
}

// choiceText renders every option with the active one bracketed.
func choiceText(options []reward.Validity, active reward.Validity) string {
	parts := make([]string, len(options))
	for i, o := range options {
		if o == active {
			parts[i] = "[" + string(o) + "]"
		} else {
			parts[i] = " " + string(o) + " "
		}
	}
	return strings.Join(parts, " ")
}
