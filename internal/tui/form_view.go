package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/authdeck/internal/form"
)

type formInput struct {
	field  form.Field
	input  textinput.Model
	secret bool
}

// formView binds text inputs to a form.State.
type formView struct {
	deps   *Deps
	state  *form.State
	inputs []formInput
	focus  int
	reveal bool
	notice string
}

type fieldSpec struct {
	field       form.Field
	placeholder string
	secret      bool
	value       string
}

func newFormView(d *Deps, schema *form.Schema, specs ...fieldSpec) *formView {
	f := &formView{
		deps:  d,
		state: form.NewState(schema, d.Policy),
	}
	for _, s := range specs {
		in := textinput.New()
		in.Placeholder = s.placeholder
		in.CharLimit = 256
		in.Width = 40
		if s.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		if s.value != "" {
			in.SetValue(s.value)
			f.state.Set(s.field, s.value)
		}
		f.inputs = append(f.inputs, formInput{field: s.field, input: in, secret: s.secret})
	}
	if len(f.inputs) > 0 {
		f.inputs[0].input.Focus()
	}
	return f
}

func (f *formView) value(field form.Field) string {
	return f.state.Value(field)
}

// setFocus moves focus to i, marking the field being left as touched.
func (f *formView) setFocus(i int) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	i = (i + len(f.inputs)) % len(f.inputs)
	if i == f.focus {
		return nil
	}
	f.state.Blur(f.inputs[f.focus].field)
	f.inputs[f.focus].input.Blur()
	f.focus = i
	return f.inputs[i].input.Focus()
}

func (f *formView) toggleReveal() {
	f.reveal = !f.reveal
	for i := range f.inputs {
		if !f.inputs[i].secret {
			continue
		}
		if f.reveal {
			f.inputs[i].input.EchoMode = textinput.EchoNormal
		} else {
			f.inputs[i].input.EchoMode = textinput.EchoPassword
		}
	}
}

// handleKey routes a key to the form. submit is true when the user asked to
// submit.
func (f *formView) handleKey(msg tea.KeyMsg) (submit bool, cmd tea.Cmd) {
	k := f.deps.keys
	switch {
	case key.Matches(msg, k.Submit):
		return true, nil
	case key.Matches(msg, k.NextField):
		return false, f.setFocus(f.focus + 1)
	case key.Matches(msg, k.PrevField):
		return false, f.setFocus(f.focus - 1)
	case key.Matches(msg, k.TogglePassword):
		f.toggleReveal()
		return false, nil
	}

	if len(f.inputs) == 0 {
		return false, nil
	}
	in := &f.inputs[f.focus]
	in.input, cmd = in.input.Update(msg)
	if in.input.Value() != f.state.Value(in.field) {
		f.state.Set(in.field, in.input.Value())
		f.notice = ""
	}
	return false, cmd
}

// begin claims the submit slot. ok is false when nothing should be
// dispatched; validation errors are visible by then.
func (f *formView) begin() (ctx context.Context, ok bool) {
	ctx, err := f.state.Begin()
	switch {
	case err == nil:
		f.notice = ""
		return ctx, true
	case errors.Is(err, form.ErrSubmitInFlight):
		f.notice = f.deps.Catalog.T("status.in_flight")
	}
	return nil, false
}

// owns reports whether msg belongs to this form and is still wanted.
func (f *formView) owns(msg submitDoneMsg) bool {
	if msg.state != f.state {
		return false
	}
	return f.state.Finish()
}

func (f *formView) view() string {
	st := f.deps.styles
	var b strings.Builder
	for i, in := range f.inputs {
		box := st.Input
		if i == f.focus {
			box = st.FocusedInput
		}
		b.WriteString(st.Label.Render(in.input.Placeholder))
		b.WriteString("\n")
		b.WriteString(box.Render(in.input.View()))
		b.WriteString("\n")
		if fe, ok := f.state.VisibleError(in.field); ok {
			b.WriteString(st.FieldError.Render(f.deps.Catalog.FieldError(f.state.Schema().Name(), fe)))
			b.WriteString("\n")
		}
	}
	if f.notice != "" {
		b.WriteString(st.Warning.Render(f.notice))
		b.WriteString("\n")
	}
	return b.String()
}

func (f *formView) close() {
	f.state.Close()
}
