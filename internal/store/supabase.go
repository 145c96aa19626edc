package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/router-for-me/SnippetRelay/internal/models"
	"github.com/tidwall/gjson"
)

// Supabase table layout of the mobile backend.
const (
	supabaseUsersTable = "users"
	supabasePlanTable  = "plan"
	supabaseUsageTable = "usage"
)

// supabasePageSize matches the default PostgREST max-rows cap.
const supabasePageSize = 1000

// SupabaseStore implements Store against a Supabase PostgREST endpoint using the service key.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

var _ Store = (*SupabaseStore)(nil)

// SupabaseOption configures SupabaseStore.
type SupabaseOption func(*SupabaseStore)

// WithSupabaseHTTPClient sets a custom HTTP client.
func WithSupabaseHTTPClient(c *http.Client) SupabaseOption {
	return func(s *SupabaseStore) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// NewSupabaseStore constructs a SupabaseStore for the project URL.
func NewSupabaseStore(projectURL, serviceKey string, opts ...SupabaseOption) *SupabaseStore {
	s := &SupabaseStore{
		baseURL:    strings.TrimRight(strings.TrimSpace(projectURL), "/") + "/rest/v1",
		serviceKey: strings.TrimSpace(serviceKey),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// supabaseUserRow mirrors a users row.
type supabaseUserRow struct {
	UUID               string  `json:"uuid"`
	Email              string  `json:"email"`
	Active             bool    `json:"active"`
	PlanID             *string `json:"plan_id"`
	CurrentPeriodStart *string `json:"current_period_start"`
	CurrentPeriodEnd   *string `json:"current_period_end"`
}

// supabasePlanRow mirrors a plan row.
type supabasePlanRow struct {
	PlanID     string `json:"plan_id"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	TokenLimit *int64 `json:"token_limit"`
}

// supabaseUsageRow mirrors a usage row.
type supabaseUsageRow struct {
	UUID       string  `json:"uuid,omitempty"`
	TokenCount *int64  `json:"token_count"`
	Datetime   *string `json:"datetime,omitempty"`
}

// FindUser loads a user by its uuid column.
func (s *SupabaseStore) FindUser(ctx context.Context, subjectID string) (*models.User, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("uuid", "eq."+strings.TrimSpace(subjectID))
	q.Set("limit", "1")

	var rows []supabaseUserRow
	if err := s.get(ctx, supabaseUsersTable, q, &rows); err != nil {
		return nil, fmt.Errorf("store: find user: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	row := rows[0]
	user := &models.User{
		SubjectID: row.UUID,
		Email:     row.Email,
		Active:    row.Active,
	}
	if row.PlanID != nil {
		user.PlanID = strings.TrimSpace(*row.PlanID)
	}
	start, errStart := parseSupabaseTime(row.CurrentPeriodStart)
	if errStart != nil {
		return nil, fmt.Errorf("store: user %s current_period_start: %w", row.UUID, errStart)
	}
	end, errEnd := parseSupabaseTime(row.CurrentPeriodEnd)
	if errEnd != nil {
		return nil, fmt.Errorf("store: user %s current_period_end: %w", row.UUID, errEnd)
	}
	user.CurrentPeriodStart = start
	user.CurrentPeriodEnd = end
	return user, nil
}

// FindActivePlan loads an active plan by plan_id.
func (s *SupabaseStore) FindActivePlan(ctx context.Context, planID string) (*models.Plan, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("plan_id", "eq."+planID)
	q.Set("active", "eq.true")
	q.Set("limit", "1")

	var rows []supabasePlanRow
	if err := s.get(ctx, supabasePlanTable, q, &rows); err != nil {
		return nil, fmt.Errorf("store: find plan: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	row := rows[0]
	plan := &models.Plan{PlanID: row.PlanID, Name: row.Name, Active: row.Active}
	if row.TokenLimit != nil {
		plan.TokenLimit = *row.TokenLimit
	}
	return plan, nil
}

// SumUsage pages through token_count values in the window and totals them client-side.
// The exact row count reported by PostgREST must be reached, otherwise the sum is a fault.
func (s *SupabaseStore) SumUsage(ctx context.Context, subjectID string, since *time.Time, until time.Time) (int64, error) {
	q := url.Values{}
	q.Set("select", "token_count")
	q.Set("uuid", "eq."+subjectID)
	if since != nil {
		q.Add("datetime", "gte."+since.UTC().Format(time.RFC3339Nano))
	}
	q.Add("datetime", "lt."+until.UTC().Format(time.RFC3339Nano))
	q.Set("order", "datetime.asc")
	q.Set("limit", strconv.Itoa(supabasePageSize))

	var total int64
	received := 0
	for {
		q.Set("offset", strconv.Itoa(received))

		var rows []supabaseUsageRow
		count, err := s.getCounted(ctx, supabaseUsageTable, q, &rows)
		if err != nil {
			return 0, fmt.Errorf("store: sum usage: %w", err)
		}
		for _, row := range rows {
			if row.TokenCount != nil {
				total += *row.TokenCount
			}
		}
		received += len(rows)

		if count >= 0 {
			if received >= count {
				return total, nil
			}
			if len(rows) == 0 {
				return 0, fmt.Errorf("store: sum usage: received %d of %d rows", received, count)
			}
			continue
		}
		if len(rows) < supabasePageSize {
			return total, nil
		}
	}
}

// InsertUsage posts one usage row.
func (s *SupabaseStore) InsertUsage(ctx context.Context, event *models.UsageEvent) error {
	if event == nil {
		return errors.New("store: nil usage event")
	}
	requestedAt := event.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now().UTC()
	}
	tokens := event.TokenCount
	datetime := requestedAt.UTC().Format(time.RFC3339Nano)
	body, errMarshal := json.Marshal(supabaseUsageRow{
		UUID:       event.SubjectID,
		TokenCount: &tokens,
		Datetime:   &datetime,
	})
	if errMarshal != nil {
		return fmt.Errorf("store: encode usage: %w", errMarshal)
	}

	req, errReq := s.newRequest(ctx, http.MethodPost, supabaseUsageTable, nil, bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("store: insert usage: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, errDo := s.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("store: insert usage: %w", errDo)
	}
	defer resp.Body.Close()
	if errStatus := checkSupabaseStatus(resp); errStatus != nil {
		return fmt.Errorf("store: insert usage: %w", errStatus)
	}
	return nil
}

func (s *SupabaseStore) get(ctx context.Context, table string, q url.Values, out any) error {
	req, errReq := s.newRequest(ctx, http.MethodGet, table, q, nil)
	if errReq != nil {
		return errReq
	}
	req.Header.Set("Accept", "application/json")

	_, errDo := s.do(req, table, out)
	return errDo
}

// getCounted is get with Prefer: count=exact; it returns the total row count or -1 when the
// server does not report one.
func (s *SupabaseStore) getCounted(ctx context.Context, table string, q url.Values, out any) (int, error) {
	req, errReq := s.newRequest(ctx, http.MethodGet, table, q, nil)
	if errReq != nil {
		return 0, errReq
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "count=exact")

	resp, errDo := s.do(req, table, out)
	if errDo != nil {
		return 0, errDo
	}
	return contentRangeTotal(resp.Header.Get("Content-Range")), nil
}

func (s *SupabaseStore) do(req *http.Request, table string, out any) (*http.Response, error) {
	resp, errDo := s.httpClient.Do(req)
	if errDo != nil {
		return nil, errDo
	}
	defer resp.Body.Close()
	if errStatus := checkSupabaseStatus(resp); errStatus != nil {
		return nil, errStatus
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(out); errDecode != nil {
		return nil, fmt.Errorf("decode %s rows: %w", table, errDecode)
	}
	return resp, nil
}

// contentRangeTotal parses the total from "0-999/1500" or "*/0"; -1 when absent or "*".
func contentRangeTotal(header string) int {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return -1
	}
	total, err := strconv.Atoi(strings.TrimSpace(header[idx+1:]))
	if err != nil || total < 0 {
		return -1
	}
	return total
}

func (s *SupabaseStore) newRequest(ctx context.Context, method, table string, q url.Values, body io.Reader) (*http.Request, error) {
	target := s.baseURL + "/" + table
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	return req, nil
}

// checkSupabaseStatus converts non-2xx PostgREST responses into errors carrying the server message.
func checkSupabaseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := gjson.GetBytes(raw, "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return fmt.Errorf("supabase status %d: %s", resp.StatusCode, msg)
}

// supabaseTimeLayouts covers timestamptz and timestamp column encodings.
var supabaseTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02",
}

func parseSupabaseTime(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range supabaseTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", value)
}
