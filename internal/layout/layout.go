// Package layout tracks the width of a resizable side panel.
package layout

import "fmt"

// Position is the window edge a panel is docked to.
type Position string

const (
	Left  Position = "left"
	Right Position = "right"
)

// Options bound a panel's width, in percent of the window.
type Options struct {
	Initial  float64  `json:"initial"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Position Position `json:"position"`
}

// DefaultOptions is a right-docked panel starting at a third of the window.
func DefaultOptions() Options {
	return Options{Initial: 33.33, Min: 20, Max: 60, Position: Right}
}

func (o Options) Validate() error {
	if o.Position != Left && o.Position != Right {
		return fmt.Errorf("position must be left or right, got %q", o.Position)
	}
	if o.Min < 0 || o.Max > 100 || o.Min > o.Max {
		return fmt.Errorf("invalid width bounds [%v, %v]", o.Min, o.Max)
	}
	return nil
}

// State is a panel's current width and drag status.
type State struct {
	Width    float64  `json:"width"`
	Dragging bool     `json:"dragging"`
	Position Position `json:"position"`
}

// Panel is not safe for concurrent use.
type Panel struct {
	opts     Options
	width    float64
	dragging bool
}

func NewPanel(opts Options) *Panel {
	p := &Panel{opts: opts}
	p.width = p.clamp(opts.Initial)
	return p
}

func (p *Panel) State() State {
	return State{Width: p.width, Dragging: p.dragging, Position: p.opts.Position}
}

// Begin starts a drag on the panel's divider.
func (p *Panel) Begin() State {
	p.dragging = true
	return p.State()
}

// Move sets the width from the pointer's horizontal position. It is ignored
// outside a drag or when the window width is not positive.
func (p *Panel) Move(mouseX, windowWidth float64) State {
	if !p.dragging || windowWidth <= 0 {
		return p.State()
	}
	var w float64
	if p.opts.Position == Right {
		w = (windowWidth - mouseX) / windowWidth * 100
	} else {
		w = mouseX / windowWidth * 100
	}
	p.width = p.clamp(w)
	return p.State()
}

// End stops the drag.
func (p *Panel) End() State {
	p.dragging = false
	return p.State()
}

func (p *Panel) clamp(w float64) float64 {
	return min(max(w, p.opts.Min), p.opts.Max)
}
