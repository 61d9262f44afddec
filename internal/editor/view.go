package editor

import "math"

// ============================================================
// Zoom / View
// ============================================================

const (
	MinZoom = 0.1
	MaxZoom = 10.0
)

// View — состояние вьюпорта, общее для обеих сторон.
type View struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
}

func defaultView() View {
	return View{Zoom: 1}
}

func clampZoom(z float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

func validFactor(f float64) bool {
	return f > 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}
