package entity

import "time"

// PriceModel is one trained artifact. Artifacts are immutable: a new training
// run always produces a new version, and at most one version is active.
type PriceModel struct {
	Version     int       `json:"version" db:"version"`
	Features    []string  `json:"features" db:"-"`
	Weights     []float64 `json:"weights" db:"-"`
	SampleCount int       `json:"sample_count" db:"sample_count"`
	Active      bool      `json:"active" db:"active"`
	TrainedAt   time.Time `json:"trained_at" db:"trained_at"`
}
