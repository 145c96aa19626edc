package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/SnippetRelay/internal/models"
	"gorm.io/gorm"
)

// GormStore implements Store on top of a GORM connection.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindUser loads a user by subject identifier.
func (s *GormStore) FindUser(ctx context.Context, subjectID string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil db")
	}
	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("subject_id = ?", strings.TrimSpace(subjectID)).
		Take(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find user: %w", errFind)
	}
	return &user, nil
}

// FindActivePlan loads an active plan by identifier.
func (s *GormStore) FindActivePlan(ctx context.Context, planID string) (*models.Plan, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil db")
	}
	var plan models.Plan
	errFind := s.db.WithContext(ctx).
		Where("plan_id = ? AND active = ?", planID, true).
		Take(&plan).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find plan: %w", errFind)
	}
	return &plan, nil
}

// SumUsage totals token counts inside the window with SUM pushed to the database.
func (s *GormStore) SumUsage(ctx context.Context, subjectID string, since *time.Time, until time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store: nil db")
	}
	q := s.db.WithContext(ctx).
		Model(&models.UsageEvent{}).
		Where("subject_id = ? AND requested_at < ?", subjectID, until.UTC())
	if since != nil {
		q = q.Where("requested_at >= ?", since.UTC())
	}

	// row holds the aggregated token sum.
	var row struct {
		Total int64
	}
	if errScan := q.Select("COALESCE(SUM(token_count), 0) AS total").Scan(&row).Error; errScan != nil {
		return 0, fmt.Errorf("store: sum usage: %w", errScan)
	}
	return row.Total, nil
}

// InsertUsage appends a usage event.
func (s *GormStore) InsertUsage(ctx context.Context, event *models.UsageEvent) error {
	if s == nil || s.db == nil {
		return errors.New("store: nil db")
	}
	if event == nil {
		return errors.New("store: nil usage event")
	}
	if event.RequestedAt.IsZero() {
		event.RequestedAt = time.Now().UTC()
	}
	if errCreate := s.db.WithContext(ctx).Create(event).Error; errCreate != nil {
		return fmt.Errorf("store: insert usage: %w", errCreate)
	}
	return nil
}
