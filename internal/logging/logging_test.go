package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SnippetRelay/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestConfigureLevelAndFormat(t *testing.T) {
	logger := log.New()
	var out bytes.Buffer

	closer, errConfigure := configure(logger, config.LoggingConfig{Level: "debug", Format: "json"}, &out)
	if errConfigure != nil {
		t.Fatalf("configure: %v", errConfigure)
	}
	defer closer.Close()

	if logger.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}
	logger.WithField("subject_id", "u1").Info("hello")
	if !strings.Contains(out.String(), `"subject_id":"u1"`) {
		t.Fatalf("expected json output, got %q", out.String())
	}
}

func TestConfigureRejectsBadValues(t *testing.T) {
	if _, err := configure(log.New(), config.LoggingConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := configure(log.New(), config.LoggingConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestConfigureWritesFile(t *testing.T) {
	logger := log.New()
	path := filepath.Join(t.TempDir(), "logs", "relay.log")
	var out bytes.Buffer

	closer, errConfigure := configure(logger, config.LoggingConfig{File: path, MaxSizeMB: 1}, &out)
	if errConfigure != nil {
		t.Fatalf("configure: %v", errConfigure)
	}
	logger.Info("to file")
	if errClose := closer.Close(); errClose != nil {
		t.Fatalf("close: %v", errClose)
	}

	data, errRead := os.ReadFile(path)
	if errRead != nil {
		t.Fatalf("read log file: %v", errRead)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("expected entry in file, got %q", data)
	}
	if !strings.Contains(out.String(), "to file") {
		t.Fatalf("expected entry mirrored to stdout, got %q", out.String())
	}
}

func newTestEngine(logger log.FieldLogger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestIDMiddleware(), AccessLogMiddleware(logger))
	engine.GET("/ping", func(c *gin.Context) {
		c.Set(GinSubjectKey, "user-1")
		c.String(http.StatusOK, GetGinRequestID(c))
	})
	return engine
}

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	engine := newTestEngine(log.New())

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := rec.Header().Get(HeaderRequestID)
	if id == "" {
		t.Fatalf("expected generated request id header")
	}
	if rec.Body.String() != id {
		t.Fatalf("expected handler to see %q, got %q", id, rec.Body.String())
	}
}

func TestRequestIDMiddlewareReusesClientID(t *testing.T) {
	engine := newTestEngine(log.New())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-client-1")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if got := rec.Header().Get(HeaderRequestID); got != "req-client-1" {
		t.Fatalf("expected client request id, got %q", got)
	}
}

func TestAccessLogMiddlewareFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	engine := newTestEngine(logger)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-log-1")
	engine.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected access log entry")
	}
	if entry.Data["status"] != http.StatusOK {
		t.Fatalf("expected status 200, got %v", entry.Data["status"])
	}
	if entry.Data["request_id"] != "req-log-1" {
		t.Fatalf("expected request_id, got %v", entry.Data["request_id"])
	}
	if entry.Data["subject_id"] != "user-1" {
		t.Fatalf("expected subject_id, got %v", entry.Data["subject_id"])
	}
}

func TestGetGinRequestIDNilContext(t *testing.T) {
	if got := GetGinRequestID(nil); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}
