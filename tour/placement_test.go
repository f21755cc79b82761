package tour

import (
	"testing"

	appshell "github.com/fleetdesk/appshell-go"
)

const (
	testGap   = 12.0
	testInset = 20.0
)

var (
	testViewport = Size{Width: 1280, Height: 800}
	testTooltip  = Size{Width: 240, Height: 120}
)

func TestPlacementRight(t *testing.T) {
	target := Rect{Left: 400, Top: 300, Width: 100, Height: 40}
	p := position(target, testTooltip, testViewport, appshell.PlaceRight, testGap, testInset)

	if p.Left != 400+100+testGap {
		t.Errorf("left: expected %v, got %v", 400+100+testGap, p.Left)
	}
	// Vertically centered on the target.
	if p.Top != 300+20-60 {
		t.Errorf("top: expected %v, got %v", 300+20-60, p.Top)
	}
}

func TestPlacementTop(t *testing.T) {
	target := Rect{Left: 600, Top: 400, Width: 80, Height: 30}
	p := position(target, testTooltip, testViewport, appshell.PlaceTop, testGap, testInset)

	if p.Top != 400-120-testGap {
		t.Errorf("top: expected %v, got %v", 400-120-testGap, p.Top)
	}
	if p.Left != 600+40-120 {
		t.Errorf("left: expected %v, got %v", 600+40-120, p.Left)
	}
}

func TestPlacementBottomAndLeft(t *testing.T) {
	target := Rect{Left: 600, Top: 400, Width: 80, Height: 30}

	b := position(target, testTooltip, testViewport, appshell.PlaceBottom, testGap, testInset)
	if b.Top != 400+30+testGap {
		t.Errorf("bottom top: expected %v, got %v", 400+30+testGap, b.Top)
	}

	l := position(target, testTooltip, testViewport, appshell.PlaceLeft, testGap, testInset)
	if l.Left != 600-240-testGap {
		t.Errorf("left left: expected %v, got %v", 600-240-testGap, l.Left)
	}
}

func TestDefaultPlacementIsRight(t *testing.T) {
	target := Rect{Left: 400, Top: 300, Width: 100, Height: 40}
	def := position(target, testTooltip, testViewport, "", testGap, testInset)
	right := position(target, testTooltip, testViewport, appshell.PlaceRight, testGap, testInset)
	if def != right {
		t.Errorf("unspecified placement should behave as right: %v vs %v", def, right)
	}
}

func TestClampOverridesDeclaredSide(t *testing.T) {
	// Target hugging the top-left corner: a top placement would push the
	// tooltip off-screen; the clamp must win.
	target := Rect{Left: 0, Top: 0, Width: 50, Height: 20}
	p := position(target, testTooltip, testViewport, appshell.PlaceTop, testGap, testInset)

	if p.Left != testInset {
		t.Errorf("left clamped: expected %v, got %v", testInset, p.Left)
	}
	if p.Top != testInset {
		t.Errorf("top clamped: expected %v, got %v", testInset, p.Top)
	}
}

func TestClampKeepsTooltipInsideEveryEdge(t *testing.T) {
	viewports := []Size{
		{Width: 1920, Height: 1080},
		{Width: 1280, Height: 800},
		{Width: 390, Height: 844}, // phone portrait
	}
	targets := []Rect{
		{Left: 0, Top: 0, Width: 40, Height: 40},
		{Left: 1900, Top: 1060, Width: 40, Height: 40}, // off the smaller viewports entirely
		{Left: -50, Top: -50, Width: 40, Height: 40},   // scrolled out of view
		{Left: 300, Top: 500, Width: 200, Height: 60},
	}
	placements := []appshell.HintPlacement{
		appshell.PlaceTop, appshell.PlaceRight, appshell.PlaceBottom, appshell.PlaceLeft,
	}

	for _, vp := range viewports {
		for _, target := range targets {
			for _, pl := range placements {
				p := position(target, testTooltip, vp, pl, testGap, testInset)
				if p.Left < testInset || p.Top < testInset {
					t.Fatalf("viewport %v target %v placement %s: position %v violates min inset", vp, target, pl, p)
				}
				if p.Left+testTooltip.Width > vp.Width-testInset ||
					p.Top+testTooltip.Height > vp.Height-testInset {
					t.Fatalf("viewport %v target %v placement %s: position %v violates max inset", vp, target, pl, p)
				}
			}
		}
	}
}

func TestActivePositionMissingTarget(t *testing.T) {
	e, _ := newEngine(t)
	e.SetActiveHint(&appshell.Hint{ID: "x", TargetSelector: "#gone", Title: "X", Placement: appshell.PlaceRight})

	locate := func(string) (Rect, bool) { return Rect{}, false }
	if _, ok := e.ActivePosition(locate, testTooltip, testViewport); ok {
		t.Fatal("missing target must skip positioning")
	}
	// The hint stays active and positions once the element appears.
	if e.ActiveHint() == nil {
		t.Fatal("hint must remain active")
	}
	found := func(string) (Rect, bool) {
		return Rect{Left: 100, Top: 100, Width: 50, Height: 20}, true
	}
	if _, ok := e.ActivePosition(found, testTooltip, testViewport); !ok {
		t.Fatal("expected a position once the target exists")
	}
}

func TestActivePositionNoActiveHint(t *testing.T) {
	e, _ := newEngine(t)
	locate := func(string) (Rect, bool) {
		return Rect{Left: 100, Top: 100, Width: 50, Height: 20}, true
	}
	if _, ok := e.ActivePosition(locate, testTooltip, testViewport); ok {
		t.Fatal("no active hint should yield no position")
	}
}
