// Package popup holds the quick actions offered over selected document text.
package popup

import (
	"errors"
	"fmt"

	"github.com/dgallion1/pdfchat/internal/selection"
)

var (
	ErrUnknownAction = errors.New("unknown popup action")
	ErrHidden        = errors.New("popup is not visible")
)

// Action is one of the fixed quick actions.
type Action string

const (
	Explain   Action = "explain"
	Summarize Action = "summarize"
	Rewrite   Action = "rewrite"
)

var labels = map[Action]string{
	Explain:   "Explain",
	Summarize: "Summarize",
	Rewrite:   "Rewrite",
}

// Actions returns the actions in display order.
func Actions() []Action {
	return []Action{Explain, Summarize, Rewrite}
}

func (a Action) Label() string {
	return labels[a]
}

// ParseAction resolves an action name.
func ParseAction(name string) (Action, error) {
	a := Action(name)
	if _, ok := labels[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return a, nil
}

// Prompt applies the action template to text verbatim.
func Prompt(a Action, text string) string {
	return a.Label() + ": " + text
}

// Button is one rendered action.
type Button struct {
	Action Action `json:"action"`
	Label  string `json:"label"`
}

// View is what the page draws for a visible popup.
type View struct {
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons"`
}

// Popup presents actions for the coordinator's current state.
type Popup struct {
	coord *selection.Coordinator
}

func New(coord *selection.Coordinator) *Popup {
	return &Popup{coord: coord}
}

// View returns nil while the popup is hidden.
func (p *Popup) View() *View {
	st := p.coord.State()
	if !st.Visible {
		return nil
	}
	v := &View{X: st.X, Y: st.Y, Text: st.Text}
	for _, a := range Actions() {
		v.Buttons = append(v.Buttons, Button{Action: a, Label: a.Label()})
	}
	return v
}

// Pending builds the prompt for the named action over the captured text,
// leaving the popup open.
func (p *Popup) Pending(name string) (string, error) {
	a, err := ParseAction(name)
	if err != nil {
		return "", err
	}
	st := p.coord.State()
	if !st.Visible {
		return "", ErrHidden
	}
	return Prompt(a, st.Text), nil
}
