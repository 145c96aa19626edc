// Package gateway runs one metered LLM request: quota check, provider call, usage record.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/SnippetRelay/internal/prompt"
	"github.com/router-for-me/SnippetRelay/internal/provider"
	"github.com/router-for-me/SnippetRelay/internal/quota"
	"github.com/router-for-me/SnippetRelay/internal/usage"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Modes recorded on usage events.
const (
	ModeSummarize = "summarize"
	ModeProxy     = "proxy"
)

const (
	defaultModel           = "gpt-3.5-turbo"
	defaultTemperature     = 0.5
	defaultBaseMaxTokens   = 500
	defaultProviderTimeout = 60 * time.Second
	maxTemperature         = 2.0
)

// ErrInvalidRequest marks a request body that fails validation.
var ErrInvalidRequest = errors.New("invalid request")

// QuotaExceededError is returned when the evaluator denies the request.
type QuotaExceededError struct {
	Decision quota.Decision
}

func (e *QuotaExceededError) Error() string {
	return "Usage limit exceeded. Please upgrade your plan."
}

// ProviderError wraps a failed provider call. No usage is recorded for it.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return e.Err.Error() }

func (e *ProviderError) Unwrap() error { return e.Err }

// UsageLogError wraps a usage record failure after the provider call succeeded.
type UsageLogError struct {
	Err error
}

func (e *UsageLogError) Error() string { return e.Err.Error() }

func (e *UsageLogError) Unwrap() error { return e.Err }

// Evaluator decides whether a subject may issue a request.
type Evaluator interface {
	Evaluate(ctx context.Context, subjectID string) quota.Decision
}

// Recorder appends one usage event.
type Recorder interface {
	Record(ctx context.Context, entry usage.Entry) error
}

// SummarizeRequest is the summarization-mode body.
type SummarizeRequest struct {
	Text        string   `json:"text"`
	Format      string   `json:"format,omitempty"`
	Persona     string   `json:"persona,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// SummarizeResponse carries the parsed snippets.
type SummarizeResponse struct {
	Snippets     []string       `json:"snippets"`
	SnippetCount int            `json:"snippet_count"`
	Model        string         `json:"model"`
	Usage        provider.Usage `json:"usage"`
	PlanInfo     quota.Decision `json:"plan_info"`
}

// ProxyRequest is the proxy-mode body.
type ProxyRequest struct {
	Messages    []provider.Message `json:"messages"`
	Model       string             `json:"model,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
}

// ProxyResponse carries the provider reply verbatim.
type ProxyResponse struct {
	Content  string         `json:"content"`
	Model    string         `json:"model"`
	Usage    provider.Usage `json:"usage"`
	PlanInfo quota.Decision `json:"plan_info"`
}

// Service wires the evaluator, provider and recorder together.
type Service struct {
	evaluator       Evaluator
	recorder        Recorder
	provider        provider.Provider
	logger          log.FieldLogger
	model           string
	temperature     float64
	baseMaxTokens   int
	providerTimeout time.Duration
}

// Option configures Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaults sets the values used when a request omits model, temperature or max_tokens.
func WithDefaults(model string, temperature float64, baseMaxTokens int) Option {
	return func(s *Service) {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			s.model = trimmed
		}
		if temperature >= 0 && temperature <= maxTemperature {
			s.temperature = temperature
		}
		if baseMaxTokens > 0 {
			s.baseMaxTokens = baseMaxTokens
		}
	}
}

// WithProviderTimeout bounds each provider call.
func WithProviderTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.providerTimeout = timeout
		}
	}
}

// NewService constructs a Service. All collaborators are required.
func NewService(evaluator Evaluator, recorder Recorder, p provider.Provider, opts ...Option) *Service {
	s := &Service{
		evaluator:       evaluator,
		recorder:        recorder,
		provider:        p,
		logger:          log.StandardLogger(),
		model:           defaultModel,
		temperature:     defaultTemperature,
		baseMaxTokens:   defaultBaseMaxTokens,
		providerTimeout: defaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the current quota decision for subjectID.
func (s *Service) Limits(ctx context.Context, subjectID string) quota.Decision {
	return s.evaluator.Evaluate(ctx, subjectID)
}

// Summarize extracts snippets from req.Text on behalf of subjectID.
func (s *Service) Summarize(ctx context.Context, subjectID, requestID string, req SummarizeRequest) (*SummarizeResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	temperature, errTemp := s.resolveTemperature(req.Temperature)
	if errTemp != nil {
		return nil, errTemp
	}

	decision, errQuota := s.admit(ctx, subjectID)
	if errQuota != nil {
		return nil, errQuota
	}

	plan := prompt.Build(req.Text, req.Format, req.Persona)
	model := s.resolveModel(req.Model)
	resp, errCall := s.call(ctx, provider.Request{
		Model:       model,
		Messages:    lo.Map(plan.Messages, func(m prompt.Message, _ int) provider.Message { return provider.Message(m) }),
		Temperature: &temperature,
		MaxTokens:   prompt.ScaleMaxTokens(s.resolveMaxTokens(req.MaxTokens), plan.SnippetCount),
	})
	if errCall != nil {
		return nil, errCall
	}

	snippets := prompt.ParseSnippets(resp.Content)
	if errRecord := s.record(ctx, subjectID, requestID, model, ModeSummarize, resp.Usage); errRecord != nil {
		return nil, errRecord
	}

	return &SummarizeResponse{
		Snippets:     snippets,
		SnippetCount: len(snippets),
		Model:        lo.Ternary(resp.Model != "", resp.Model, model),
		Usage:        resp.Usage,
		PlanInfo:     decision,
	}, nil
}

// Proxy forwards req.Messages to the provider on behalf of subjectID.
func (s *Service) Proxy(ctx context.Context, subjectID, requestID string, req ProxyRequest) (*ProxyResponse, error) {
	if errMessages := validateMessages(req.Messages); errMessages != nil {
		return nil, errMessages
	}
	temperature, errTemp := s.resolveTemperature(req.Temperature)
	if errTemp != nil {
		return nil, errTemp
	}

	decision, errQuota := s.admit(ctx, subjectID)
	if errQuota != nil {
		return nil, errQuota
	}

	model := s.resolveModel(req.Model)
	resp, errCall := s.call(ctx, provider.Request{
		Model:       model,
		Messages:    req.Messages,
		Temperature: &temperature,
		MaxTokens:   s.resolveMaxTokens(req.MaxTokens),
	})
	if errCall != nil {
		return nil, errCall
	}

	if errRecord := s.record(ctx, subjectID, requestID, model, ModeProxy, resp.Usage); errRecord != nil {
		return nil, errRecord
	}

	return &ProxyResponse{
		Content:  resp.Content,
		Model:    lo.Ternary(resp.Model != "", resp.Model, model),
		Usage:    resp.Usage,
		PlanInfo: decision,
	}, nil
}

func (s *Service) admit(ctx context.Context, subjectID string) (quota.Decision, error) {
	decision := s.evaluator.Evaluate(ctx, subjectID)
	if !decision.Allowed {
		return decision, &QuotaExceededError{Decision: decision}
	}
	return decision, nil
}

func (s *Service) call(ctx context.Context, req provider.Request) (*provider.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	resp, errCall := s.provider.ChatCompletion(callCtx, req)
	if errCall != nil {
		s.logger.WithError(errCall).WithField("model", req.Model).Warn("gateway: provider call failed")
		return nil, &ProviderError{Err: errCall}
	}
	return resp, nil
}

func (s *Service) record(ctx context.Context, subjectID, requestID, model, mode string, u provider.Usage) error {
	errRecord := s.recorder.Record(ctx, usage.Entry{
		SubjectID:        subjectID,
		Model:            model,
		TotalTokens:      u.TotalTokens,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		Mode:             mode,
		RequestID:        requestID,
	})
	if errRecord != nil {
		return &UsageLogError{Err: errRecord}
	}
	return nil
}

func (s *Service) resolveModel(model string) string {
	if trimmed := strings.TrimSpace(model); trimmed != "" {
		return trimmed
	}
	return s.model
}

func (s *Service) resolveMaxTokens(requested int) int {
	if requested <= 0 {
		return s.baseMaxTokens
	}
	return requested
}

func (s *Service) resolveTemperature(requested *float64) (float64, error) {
	if requested == nil {
		return s.temperature, nil
	}
	if *requested < 0 || *requested > maxTemperature {
		return 0, fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidRequest)
	}
	return *requested, nil
}

var allowedRoles = map[string]struct{}{
	prompt.RoleSystem:    {},
	prompt.RoleUser:      {},
	prompt.RoleAssistant: {},
}

func validateMessages(messages []provider.Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: messages must not be empty", ErrInvalidRequest)
	}
	for i, m := range messages {
		if _, ok := allowedRoles[m.Role]; !ok {
			return fmt.Errorf("%w: messages[%d]: unsupported role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	return nil
}
