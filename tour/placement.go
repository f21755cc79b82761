package tour

import appshell "github.com/fleetdesk/appshell-go"

// Rect is an on-screen bounding rectangle.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Size is a width/height pair.
type Size struct {
	Width  float64
	Height float64
}

// Point is a computed top-left tooltip position.
type Point struct {
	Left float64
	Top  float64
}

// TargetLocator resolves a hint's target selector to its current
// bounding rectangle. ok=false when the element is not present.
type TargetLocator func(selector string) (rect Rect, ok bool)

// position computes the tooltip's top-left corner for a target rectangle
// and declared side, then clamps it so the tooltip's own bounding box
// stays at least inset away from every viewport edge. The clamp is
// unconditional: visibility wins over the declared side.
func position(target Rect, tooltip Size, viewport Size, placement appshell.HintPlacement, gap, inset float64) Point {
	centerLeft := target.Left + target.Width/2 - tooltip.Width/2
	centerTop := target.Top + target.Height/2 - tooltip.Height/2

	var p Point
	switch placement {
	case appshell.PlaceTop:
		p = Point{Left: centerLeft, Top: target.Top - tooltip.Height - gap}
	case appshell.PlaceBottom:
		p = Point{Left: centerLeft, Top: target.Top + target.Height + gap}
	case appshell.PlaceLeft:
		p = Point{Left: target.Left - tooltip.Width - gap, Top: centerTop}
	default: // right
		p = Point{Left: target.Left + target.Width + gap, Top: centerTop}
	}

	p.Left = clamp(p.Left, inset, viewport.Width-tooltip.Width-inset)
	p.Top = clamp(p.Top, inset, viewport.Height-tooltip.Height-inset)
	return p
}

// clamp bounds v to [lo, hi]; when the range is empty the lower bound
// wins, pinning an oversized tooltip to the top-left inset.
func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
