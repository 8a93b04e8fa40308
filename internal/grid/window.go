package grid

import (
	"math"

	"github.com/pitabwire/gridcore/model"
)

// VisibleWindow returns the half-open row index range [start, end) an
// external virtualizer should render for a viewport at scrollTop. With
// virtualization disabled every row is in the window.
func VisibleWindow(cfg model.VirtualizationConfig, rowCount int, scrollTop, viewportHeight float64) (start, end int) {
	if !cfg.Enabled || cfg.EstimatedRowHeight <= 0 || rowCount <= 0 {
		return 0, max(rowCount, 0)
	}
	h := float64(cfg.EstimatedRowHeight)
	first := int(math.Floor(max(scrollTop, 0) / h))
	last := int(math.Ceil((max(scrollTop, 0) + max(viewportHeight, 0)) / h))

	start = max(first-cfg.Overscan, 0)
	end = min(last+cfg.Overscan, rowCount)
	if start > end {
		start = end
	}
	return start, end
}
