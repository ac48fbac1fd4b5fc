// Package selection turns pointer, click and key events from the document
// view into popup state.
//
// A Coordinator is not safe for concurrent use; the owning session
// serializes calls.
package selection

import "strings"

// Rect is a client-space rectangle as reported by the browser.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r *Rect) usable() bool {
	return r != nil && (r.Width > 0 || r.Height > 0)
}

// Point is a pointer position in client space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PopupState is where the popup is anchored and what text it carries.
type PopupState struct {
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Text    string  `json:"text"`
}

// Selection describes the browser selection at pointer-up time.
type Selection struct {
	Collapsed bool   `json:"collapsed"`
	Text      string `json:"text"`
	// InDocument reports whether the selection's anchor lies inside the
	// document display region.
	InDocument bool `json:"inDocument"`
	// Rect is nil when the browser could not measure the range.
	Rect *Rect `json:"rect,omitempty"`
}

// PointerUp is a pointer-up event.
type PointerUp struct {
	Selection Selection `json:"selection"`
	Pointer   *Point    `json:"pointer,omitempty"`
}

// Target is the element a click landed on.
type Target struct {
	Tag         string `json:"tag"`
	InTextLayer bool   `json:"inTextLayer"`
	Text        string `json:"text"`
	Rect        *Rect  `json:"rect,omitempty"`
}

// Click is a click event.
type Click struct {
	Target Target `json:"target"`
	// SelectionActive reports a non-collapsed selection at click time.
	SelectionActive bool   `json:"selectionActive"`
	Pointer         *Point `json:"pointer,omitempty"`
}

// Coordinator owns the popup state for one document view.
type Coordinator struct {
	state   PopupState
	pointer *Point
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

func (c *Coordinator) State() PopupState {
	return c.state
}

// PointerUp opens the popup above a non-empty selection inside the document.
// Other selections leave the state unchanged.
func (c *Coordinator) PointerUp(ev PointerUp) PopupState {
	c.track(ev.Pointer)
	sel := ev.Selection
	text := strings.TrimSpace(sel.Text)
	if sel.Collapsed || text == "" || !sel.InDocument {
		return c.state
	}
	if x, y, ok := c.anchor(sel.Rect); ok {
		c.state = PopupState{Visible: true, X: x, Y: y, Text: text}
	}
	return c.state
}

// Click anchors the popup on a text-layer span. Clicking anywhere else
// closes it, unless a selection is active.
func (c *Coordinator) Click(ev Click) PopupState {
	c.track(ev.Pointer)
	t := ev.Target
	if strings.EqualFold(t.Tag, "span") && t.InTextLayer {
		if x, y, ok := c.anchor(t.Rect); ok {
			c.state = PopupState{Visible: true, X: x, Y: y, Text: t.Text}
		}
		return c.state
	}
	if ev.SelectionActive {
		return c.state
	}
	return c.Close()
}

// KeyDown closes the popup on Escape.
func (c *Coordinator) KeyDown(key string) PopupState {
	if key == "Escape" {
		return c.Close()
	}
	return c.state
}

// Close hides the popup, keeping its last anchor and text.
func (c *Coordinator) Close() PopupState {
	c.state.Visible = false
	return c.state
}

func (c *Coordinator) track(p *Point) {
	if p != nil {
		pt := *p
		c.pointer = &pt
	}
}

// anchor returns the horizontal midpoint and top of r, or the last pointer
// position when r is unusable.
func (c *Coordinator) anchor(r *Rect) (x, y float64, ok bool) {
	if r.usable() {
		return r.Left + r.Width/2, r.Top, true
	}
	if c.pointer != nil {
		return c.pointer.X, c.pointer.Y, true
	}
	return 0, 0, false
}
