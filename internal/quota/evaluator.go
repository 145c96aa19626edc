package quota

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/router-for-me/SnippetRelay/internal/store"
	log "github.com/sirupsen/logrus"
)

// Plan labels reported when a decision is not tied to a real plan.
const (
	PlanNone     = "none"
	PlanInactive = "inactive"
	PlanExpired  = "expired"
	PlanUnknown  = "unknown"
)

// MessageLimitExceeded is attached to decisions rejected for exhausted quota.
const MessageLimitExceeded = "Usage limits exceeded. Please upgrade your plan."

// defaultStoreTimeout bounds the store lookups of one evaluation.
const defaultStoreTimeout = 5 * time.Second

// Decision is the outcome of one quota evaluation. It is never cached.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Plan      string `json:"plan"`
	Remaining int64  `json:"remaining"`
	Message   string `json:"message,omitempty"`
}

// Evaluator decides whether a subject may issue a request right now.
// It is read-only and safe for concurrent use.
type Evaluator struct {
	store   store.Store
	logger  log.FieldLogger
	timeout time.Duration
	now     func() time.Time
}

// Option configures Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger that receives decision and fault events.
func WithLogger(logger log.FieldLogger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTimeout bounds the store lookups of a single evaluation.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Evaluator) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator constructs an Evaluator backed by the given store.
func NewEvaluator(s store.Store, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:   s,
		logger:  log.StandardLogger(),
		timeout: defaultStoreTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes a fresh decision for subjectID.
//
// A store fault never rejects the caller: the decision falls open to
// {allowed: true, plan: "unknown", remaining: 0}.
func (e *Evaluator) Evaluate(ctx context.Context, subjectID string) Decision {
	if ctx == nil {
		ctx = context.Background()
	}
	fields := log.Fields{"subject_id": subjectID}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	decision, err := e.evaluate(ctx, subjectID)
	if err != nil {
		e.logger.WithFields(fields).WithError(err).WithField("fault", "store").
			Warn("quota: store fault during evaluation, failing open")
		return Decision{Allowed: true, Plan: PlanUnknown, Remaining: 0}
	}

	entry := e.logger.WithFields(fields).WithFields(log.Fields{
		"plan":      decision.Plan,
		"allowed":   decision.Allowed,
		"remaining": decision.Remaining,
	})
	if decision.Allowed {
		entry.Debug("quota: request allowed")
	} else {
		entry.Info("quota: request rejected")
	}
	return decision
}

func (e *Evaluator) evaluate(ctx context.Context, subjectID string) (Decision, error) {
	if e == nil || e.store == nil {
		return Decision{}, errors.New("quota: nil store")
	}

	user, errUser := e.store.FindUser(ctx, subjectID)
	if errUser != nil {
		if errors.Is(errUser, store.ErrNotFound) {
			return deny(PlanNone, ""), nil
		}
		return Decision{}, errUser
	}

	planID := strings.TrimSpace(user.PlanID)
	if !user.Active {
		return deny(orDefault(planID, PlanInactive), ""), nil
	}

	now := e.now()
	if user.CurrentPeriodEnd != nil && now.After(*user.CurrentPeriodEnd) {
		return deny(orDefault(planID, PlanExpired), ""), nil
	}

	if planID == "" {
		return deny(PlanNone, ""), nil
	}

	plan, errPlan := e.store.FindActivePlan(ctx, planID)
	if errPlan != nil {
		if errors.Is(errPlan, store.ErrNotFound) {
			return deny(planID, ""), nil
		}
		return Decision{}, errPlan
	}
	if plan.TokenLimit <= 0 {
		return deny(planID, ""), nil
	}

	used, errSum := e.store.SumUsage(ctx, subjectID, user.CurrentPeriodStart, now)
	if errSum != nil {
		return Decision{}, errSum
	}

	remaining := plan.TokenLimit - used
	if remaining <= 0 {
		return deny(planID, MessageLimitExceeded), nil
	}
	return Decision{Allowed: true, Plan: planID, Remaining: remaining}, nil
}

func deny(plan, message string) Decision {
	return Decision{Allowed: false, Plan: plan, Remaining: 0, Message: message}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
