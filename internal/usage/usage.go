package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/SnippetRelay/internal/models"
	"github.com/router-for-me/SnippetRelay/internal/store"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// defaultRecordTimeout bounds a single usage insert.
const defaultRecordTimeout = 5 * time.Second

// Entry describes the token cost of one completed provider call.
type Entry struct {
	SubjectID string
	Model     string
	// TotalTokens is the billed amount.
	TotalTokens      int64
	PromptTokens     int64
	CompletionTokens int64
	Mode             string
	RequestID        string
}

// Recorder appends usage events for completed provider calls.
//
// Faults are returned to the caller; a lost usage event is never swallowed.
type Recorder struct {
	store   store.Store
	logger  log.FieldLogger
	timeout time.Duration
	now     func() time.Time
}

// Option configures Recorder.
type Option func(*Recorder)

// WithLogger sets the logger for recorded and failed events.
func WithLogger(logger log.FieldLogger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeout bounds a single insert.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Recorder) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder constructs a Recorder backed by the given store.
func NewRecorder(s store.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:   s,
		logger:  log.StandardLogger(),
		timeout: defaultRecordTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one usage event for the entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.store == nil {
		return errors.New("usage: nil store")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	subjectID := strings.TrimSpace(entry.SubjectID)
	if subjectID == "" {
		return errors.New("usage: empty subject id")
	}

	fields := log.Fields{
		"subject_id": subjectID,
		"model":      entry.Model,
		"tokens":     entry.TotalTokens,
	}
	tokens := entry.TotalTokens
	if tokens < 0 {
		r.logger.WithFields(fields).Warn("usage: negative token count clamped to zero")
		tokens = 0
	}

	event := &models.UsageEvent{
		SubjectID:   subjectID,
		Model:       strings.TrimSpace(entry.Model),
		RequestedAt: r.now(),
		TokenCount:  tokens,
		Metadata:    buildMetadata(entry),
	}

	// The provider call has already completed; a caller that goes away must not drop the event.
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if errInsert := r.store.InsertUsage(dbCtx, event); errInsert != nil {
		r.logger.WithFields(fields).WithError(errInsert).WithField("fault", "store").
			Error("usage: failed to record usage event")
		return fmt.Errorf("usage: record: %w", errInsert)
	}
	r.logger.WithFields(fields).Info("usage: recorded")
	return nil
}

// buildMetadata captures the informational parts of the entry as a JSON object.
func buildMetadata(entry Entry) datatypes.JSON {
	meta := map[string]any{}
	if entry.Mode != "" {
		meta["mode"] = entry.Mode
	}
	if entry.RequestID != "" {
		meta["request_id"] = entry.RequestID
	}
	if entry.PromptTokens > 0 || entry.CompletionTokens > 0 {
		meta["prompt_tokens"] = entry.PromptTokens
		meta["completion_tokens"] = entry.CompletionTokens
	}
	raw, errMarshal := json.Marshal(meta)
	if errMarshal != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}
