package detect

import "github.com/xkilldash9x/noticescan/api/schemas"

// overlapRatio is the intersection area divided by the smaller box's area.
// Using the smaller box means a region fully nested inside another scores
// 1.0 regardless of how big the outer one is.
func overlapRatio(a, b schemas.Rect) float64 {
	smaller := a.Area()
	if other := b.Area(); other < smaller {
		smaller = other
	}
	if smaller <= 0 {
		return 0
	}

	ix := max(a.X, b.X)
	iy := max(a.Y, b.Y)
	ix2 := min(a.X+a.W, b.X+b.W)
	iy2 := min(a.Y+a.H, b.Y+b.H)
	if ix2 <= ix || iy2 <= iy {
		return 0
	}
	return (ix2 - ix) * (iy2 - iy) / smaller
}

// union is the smallest rect covering both boxes.
func union(a, b schemas.Rect) schemas.Rect {
	x := min(a.X, b.X)
	y := min(a.Y, b.Y)
	x2 := max(a.X+a.W, b.X+b.W)
	y2 := max(a.Y+a.H, b.Y+b.H)
	return schemas.Rect{X: x, Y: y, W: x2 - x, H: y2 - y}
}

// edgeAnchored reports whether the box hugs the top or bottom viewport edge
// across nearly the full width, the classic banner placement.
func edgeAnchored(box schemas.Rect, vw, vh int) bool {
	if vw <= 0 || vh <= 0 {
		return false
	}
	fullWidth := box.W >= float64(vw)*0.9
	nearTop := box.Y <= float64(vh)*0.05
	nearBottom := box.Y+box.H >= float64(vh)*0.95 && box.Y >= float64(vh)*0.4
	return fullWidth && (nearTop || nearBottom)
}

// coverage is the fraction of the viewport the box occupies, clamped to 1.
func coverage(box schemas.Rect, vw, vh int) float64 {
	total := float64(vw) * float64(vh)
	if total <= 0 {
		return 0
	}
	c := box.Area() / total
	if c > 1 {
		return 1
	}
	return c
}
