// Package store provides read access to users and plans and append access to usage events.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/router-for-me/SnippetRelay/internal/models"
)

// ErrNotFound indicates the requested user or active plan does not exist.
var ErrNotFound = errors.New("store: record not found")

// Store is the backing record store used by quota evaluation and usage metering.
//
// Every method must honor the context deadline and fail instead of blocking.
type Store interface {
	// FindUser returns the account for a subject identifier or ErrNotFound.
	FindUser(ctx context.Context, subjectID string) (*models.User, error)
	// FindActivePlan returns an active plan by identifier or ErrNotFound.
	FindActivePlan(ctx context.Context, planID string) (*models.Plan, error)
	// SumUsage totals token counts for a subject with since <= requested_at < until.
	// A nil since sums from the first event.
	SumUsage(ctx context.Context, subjectID string, since *time.Time, until time.Time) (int64, error)
	// InsertUsage appends one usage event as a single insert.
	InsertUsage(ctx context.Context, event *models.UsageEvent) error
}
