package layout

import (
	"math"
	"testing"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewPanel_Defaults(t *testing.T) {
	st := NewPanel(DefaultOptions()).State()
	if st.Width != 33.33 || st.Dragging || st.Position != Right {
		t.Errorf("unexpected initial state %+v", st)
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		position Position
		mouseX   float64
		window   float64
		want     float64
	}{
		{"right half", Right, 500, 1000, 50},
		{"right clamps to max", Right, 100, 1000, 60},
		{"right clamps to min", Right, 950, 1000, 20},
		{"left", Left, 300, 1000, 30},
		{"left clamps to max", Left, 900, 1000, 60},
		{"left clamps to min", Left, 10, 1000, 20},
		{"pointer past window edge", Right, 1400, 1000, 20},
		{"negative pointer", Left, -50, 1000, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Position = tt.position
			p := NewPanel(opts)
			p.Begin()
			if st := p.Move(tt.mouseX, tt.window); !near(st.Width, tt.want) {
				t.Errorf("expected width %v, got %v", tt.want, st.Width)
			}
		})
	}
}

func TestMove_IgnoredOutsideDrag(t *testing.T) {
	p := NewPanel(DefaultOptions())
	if st := p.Move(500, 1000); st.Width != 33.33 {
		t.Errorf("expected move before Begin ignored, got %v", st.Width)
	}

	p.Begin()
	p.Move(500, 1000)
	p.End()
	if st := p.Move(100, 1000); st.Width != 50 {
		t.Errorf("expected move after End ignored, got %v", st.Width)
	}
}

func TestMove_NonPositiveWindow(t *testing.T) {
	p := NewPanel(DefaultOptions())
	p.Begin()
	for _, w := range []float64{0, -1} {
		if st := p.Move(10, w); st.Width != 33.33 {
			t.Errorf("window %v: expected width unchanged, got %v", w, st.Width)
		}
	}
}

func TestWidthAlwaysWithinBounds(t *testing.T) {
	opts := DefaultOptions()
	p := NewPanel(opts)
	p.Begin()
	for x := -500.0; x <= 2500; x += 37 {
		for _, win := range []float64{320, 1024, 1920} {
			st := p.Move(x, win)
			if st.Width < opts.Min || st.Width > opts.Max {
				t.Fatalf("width %v out of bounds for x=%v window=%v", st.Width, x, win)
			}
		}
	}
}

func TestNewPanel_ClampsInitial(t *testing.T) {
	p := NewPanel(Options{Initial: 90, Min: 20, Max: 60, Position: Left})
	if st := p.State(); st.Width != 60 {
		t.Errorf("expected initial width clamped to 60, got %v", st.Width)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", DefaultOptions(), false},
		{"bad position", Options{Min: 20, Max: 60, Position: "top"}, true},
		{"min above max", Options{Min: 70, Max: 60, Position: Right}, true},
		{"max above 100", Options{Min: 20, Max: 120, Position: Right}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
