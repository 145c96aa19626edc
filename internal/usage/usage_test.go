package usage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/router-for-me/SnippetRelay/internal/db"
	"github.com/router-for-me/SnippetRelay/internal/models"
	"github.com/router-for-me/SnippetRelay/internal/store"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func TestRecordPersistsUsageEvent(t *testing.T) {
	conn := openTestDB(t)
	at := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	recorder := NewRecorder(store.NewGormStore(conn), WithLogger(quietLogger()), WithClock(func() time.Time { return at }))

	errRecord := recorder.Record(context.Background(), Entry{
		SubjectID:        "sub-1",
		Model:            "gpt-3.5-turbo",
		TotalTokens:      150,
		PromptTokens:     100,
		CompletionTokens: 50,
		Mode:             "summarize",
		RequestID:        "req-123",
	})
	if errRecord != nil {
		t.Fatalf("record: %v", errRecord)
	}

	var row models.UsageEvent
	if errFind := conn.Order("id DESC").Take(&row).Error; errFind != nil {
		t.Fatalf("query usage event: %v", errFind)
	}
	if row.SubjectID != "sub-1" || row.TokenCount != 150 || row.Model != "gpt-3.5-turbo" {
		t.Fatalf("unexpected usage event: %+v", row)
	}
	if !row.RequestedAt.Equal(at) {
		t.Fatalf("expected requested_at %s, got %s", at, row.RequestedAt)
	}

	var meta map[string]any
	if errUnmarshal := json.Unmarshal(row.Metadata, &meta); errUnmarshal != nil {
		t.Fatalf("decode metadata: %v", errUnmarshal)
	}
	if meta["request_id"] != "req-123" || meta["mode"] != "summarize" || meta["prompt_tokens"] != float64(100) {
		t.Fatalf("unexpected metadata: %v", meta)
	}
}

func TestRecordAppendsWithoutMutatingPriorEvents(t *testing.T) {
	conn := openTestDB(t)
	recorder := NewRecorder(store.NewGormStore(conn), WithLogger(quietLogger()))

	for _, tokens := range []int64{10, 20, 30} {
		if errRecord := recorder.Record(context.Background(), Entry{SubjectID: "sub-1", Model: "m", TotalTokens: tokens}); errRecord != nil {
			t.Fatalf("record %d: %v", tokens, errRecord)
		}
	}

	var counts []int64
	if errPluck := conn.Model(&models.UsageEvent{}).Order("id ASC").Pluck("token_count", &counts).Error; errPluck != nil {
		t.Fatalf("pluck token counts: %v", errPluck)
	}
	if len(counts) != 3 || counts[0] != 10 || counts[1] != 20 || counts[2] != 30 {
		t.Fatalf("expected three appended events, got %v", counts)
	}
}

type failingStore struct {
	store.Store
	err error
}

func (f failingStore) InsertUsage(context.Context, *models.UsageEvent) error { return f.err }

func TestRecordSurfacesStoreFault(t *testing.T) {
	fault := errors.New("disk full")
	recorder := NewRecorder(failingStore{err: fault}, WithLogger(quietLogger()))

	errRecord := recorder.Record(context.Background(), Entry{SubjectID: "sub-1", TotalTokens: 10})
	if !errors.Is(errRecord, fault) {
		t.Fatalf("expected store fault to propagate, got %v", errRecord)
	}
}

func TestRecordRejectsEmptySubject(t *testing.T) {
	conn := openTestDB(t)
	recorder := NewRecorder(store.NewGormStore(conn), WithLogger(quietLogger()))

	if errRecord := recorder.Record(context.Background(), Entry{SubjectID: "  ", TotalTokens: 10}); errRecord == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestRecordClampsNegativeTokens(t *testing.T) {
	conn := openTestDB(t)
	recorder := NewRecorder(store.NewGormStore(conn), WithLogger(quietLogger()))

	if errRecord := recorder.Record(context.Background(), Entry{SubjectID: "sub-1", TotalTokens: -5}); errRecord != nil {
		t.Fatalf("record: %v", errRecord)
	}
	var row models.UsageEvent
	if errFind := conn.Take(&row).Error; errFind != nil {
		t.Fatalf("query usage event: %v", errFind)
	}
	if row.TokenCount != 0 {
		t.Fatalf("expected clamped token count 0, got %d", row.TokenCount)
	}
	if string(row.Metadata) != "{}" {
		t.Fatalf("expected empty metadata object, got %s", row.Metadata)
	}
}
