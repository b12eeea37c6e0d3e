package store

import (
	"context"
	"time"

	"github.com/HomegrownMarine/sailing-calculations/pkg/model"
)

// Run describes one analysis over one log.
type Run struct {
	ID          string
	Source      string
	SampleCount int
	First       time.Time
	Last        time.Time
	// Settings is the analysis configuration the run used, as JSON.
	Settings  string
	CreatedAt time.Time
}

// RunStore handles analysis run persistence.
type RunStore interface {
	SaveRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
}

// TackStore handles tack record persistence.
type TackStore interface {
	SaveTacks(ctx context.Context, runID string, tacks []model.Tack) error
	GetTacks(ctx context.Context, runID string) ([]model.Tack, error)
	CountTacks(ctx context.Context, runID string) (int, error)
}
