package model

// LoadingState is the runtime state of a grid's fetch lifecycle.
type LoadingState string

// Loading states.
const (
	StateIdle       LoadingState = "idle"
	StateLoading    LoadingState = "loading"
	StateRefreshing LoadingState = "refreshing"
	StateSuccess    LoadingState = "success"
	StateError      LoadingState = "error"
)

// Busy reports whether a fetch is in flight.
func (s LoadingState) Busy() bool {
	return s == StateLoading || s == StateRefreshing
}

// PersistedState is the slice of grid state written to durable storage.
type PersistedState struct {
	ColumnVisibility map[string]bool `json:"columnVisibility"`
	PageSize         int             `json:"pageSize"`
}

// PinSide is the side a column is pinned to.
type PinSide string

// Pin sides.
const (
	PinNone  PinSide = "none"
	PinLeft  PinSide = "left"
	PinRight PinSide = "right"
)

// VirtualizationConfig is the contract handed to an external row
// virtualizer.
type VirtualizationConfig struct {
	Enabled            bool `json:"enabled" yaml:"enabled"`
	EstimatedRowHeight int  `json:"estimated_row_height" yaml:"estimated_row_height"`
	Overscan           int  `json:"overscan" yaml:"overscan"`
}
