package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"warden/internal/community"
	"warden/internal/directory"
	"warden/internal/evidence"
	"warden/internal/fetch"
	"warden/internal/gateway"
	"warden/internal/ledger"
	"warden/internal/logging"
	"warden/internal/metrics"
	"warden/internal/notifications"
	"warden/internal/queue"
	"warden/internal/review"
	"warden/internal/services"
)

const (
	defaultFetchTimeout    = 15 * time.Second
	defaultAnalysisTimeout = 60 * time.Second
)

// Analyzer turns evidence bytes into a result. It must be deterministic in
// its input.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte) evidence.AnalysisResult
}

// SettingsSource returns per-community settings, nil when unknown.
type SettingsSource interface {
	Get(ctx context.Context, communityID string) (*community.Settings, error)
}

// CaseStore records escalations for operator review.
type CaseStore interface {
	Open(ctx context.Context, in review.NewCase) (*review.Case, error)
	ResolveOpenForMember(ctx context.Context, member evidence.Member, actor, resolution string) (int, error)
}

// Dependencies are the collaborators a Coordinator drives. Notifier and
// Membership are optional.
type Dependencies struct {
	Queue      *queue.Queue
	Ledger     *ledger.Service
	Analyzer   Analyzer
	Fetcher    fetch.Fetcher
	Directory  directory.Directory
	Gateway    gateway.MembershipGateway
	Settings   SettingsSource
	Reviews    CaseStore
	Notifier   notifications.Service
	Membership *Membership
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Queue == nil {
		missing = append(missing, "queue")
	}
	if d.Ledger == nil {
		missing = append(missing, "ledger")
	}
	if d.Analyzer == nil {
		missing = append(missing, "analyzer")
	}
	if d.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if d.Directory == nil {
		missing = append(missing, "directory")
	}
	if d.Gateway == nil {
		missing = append(missing, "gateway")
	}
	if d.Settings == nil {
		missing = append(missing, "settings")
	}
	if d.Reviews == nil {
		missing = append(missing, "reviews")
	}
	if len(missing) > 0 {
		return fmt.Errorf("verification: missing dependencies: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Coordinator owns the submission lifecycle: admission, analysis, the
// ledger transition and delivery of the decision.
type Coordinator struct {
	queue      *queue.Queue
	ledger     *ledger.Service
	analyzer   Analyzer
	fetcher    fetch.Fetcher
	directory  directory.Directory
	gateway    gateway.MembershipGateway
	settings   SettingsSource
	reviews    CaseStore
	notifier   notifications.Service
	membership *Membership

	logger          *slog.Logger
	metrics         *metrics.Metrics
	clock           func() time.Time
	fetchTimeout    time.Duration
	analysisTimeout time.Duration
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithTimeouts bounds the two points where the worker waits. Zero keeps the
// default.
func WithTimeouts(fetchTimeout, analysisTimeout time.Duration) Option {
	return func(c *Coordinator) {
		if fetchTimeout > 0 {
			c.fetchTimeout = fetchTimeout
		}
		if analysisTimeout > 0 {
			c.analysisTimeout = analysisTimeout
		}
	}
}

func New(deps Dependencies, opts ...Option) (*Coordinator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		queue:           deps.Queue,
		ledger:          deps.Ledger,
		analyzer:        deps.Analyzer,
		fetcher:         deps.Fetcher,
		directory:       deps.Directory,
		gateway:         deps.Gateway,
		settings:        deps.Settings,
		reviews:         deps.Reviews,
		notifier:        deps.Notifier,
		membership:      deps.Membership,
		logger:          logging.NewNop(),
		clock:           time.Now,
		fetchTimeout:    defaultFetchTimeout,
		analysisTimeout: defaultAnalysisTimeout,
	}
	if c.notifier == nil {
		c.notifier = notifications.NewNoop()
	}
	if c.membership == nil {
		c.membership = NewMembership()
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "verification")
	return c, nil
}

// Receipt answers a Submit call. Message is the reply for the member and is
// set on rejection too.
type Receipt struct {
	Submission evidence.Submission `json:"submission"`
	Ticket     queue.Ticket        `json:"ticket"`
	Message    string              `json:"message"`
}

// Submit admits a new piece of evidence. Refusals come back as a
// *queue.Rejection alongside a Receipt carrying the member's reply.
func (c *Coordinator) Submit(ctx context.Context, member evidence.Member, imageRef string) (Receipt, error) {
	sub, err := evidence.NewSubmission(member, imageRef, c.clock())
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrValidation, "verification", "submit", "invalid submission", err)
	}
	ctx = services.WithMember(ctx, sub.CommunityID, sub.UserID)

	var lock ledger.LockState
	ticket, err := c.queue.Enqueue(ctx, sub, c.admit(&lock))
	if err != nil {
		rej, ok := queue.AsRejection(err)
		if !ok {
			return Receipt{}, err
		}
		if rej.Reason == queue.RejectNotConfigured {
			c.reportConfiguration(ctx, sub.CommunityID, rej.Err)
		}
		return Receipt{Submission: sub, Message: RejectionMessage(rej, lock)}, rej
	}
	return Receipt{Submission: sub, Ticket: ticket, Message: acceptedMessage(ticket)}, nil
}

// admit runs inside the queue's critical section. Locked members never reach
// the analyzer.
func (c *Coordinator) admit(lock *ledger.LockState) queue.AdmitFunc {
	return func(ctx context.Context, member evidence.Member) error {
		state, err := c.ledger.State(ctx, member)
		if err != nil {
			return services.Wrap(services.ErrTransient, "verification", "admit", "read ledger state", err)
		}
		if state.LockState.Locked() {
			*lock = state.LockState
			return queue.Reject(queue.RejectLocked, state.String(), ledger.ErrLocked)
		}
		settings, err := c.settings.Get(ctx, member.CommunityID)
		if err != nil {
			return services.Wrap(services.ErrTransient, "verification", "admit", "load community settings", err)
		}
		if err := settings.Check(member.CommunityID); err != nil {
			return queue.Reject(queue.RejectNotConfigured, err.Error(), err)
		}
		return nil
	}
}

// Run drives the queue worker until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	return c.queue.Run(ctx, func(ctx context.Context, job queue.Job) {
		c.HandleSubmission(ctx, job.Submission)
	})
}

// CurrentState returns the member's ledger state.
func (c *Coordinator) CurrentState(ctx context.Context, member evidence.Member) (ledger.State, error) {
	return c.ledger.State(ctx, member)
}

// UnlockResult reports an administrative unlock.
type UnlockResult struct {
	Transition    ledger.Transition `json:"transition"`
	ResolvedCases int               `json:"resolved_cases"`
}

// AdminUnlock resets the member to Open(0) and closes their open review
// cases.
func (c *Coordinator) AdminUnlock(ctx context.Context, member evidence.Member, actor string) (UnlockResult, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "admin"
	}
	ctx = services.WithMember(ctx, member.CommunityID, member.UserID)
	tr, err := c.ledger.Unlock(ctx, member, actor)
	if err != nil {
		return UnlockResult{}, err
	}
	resolved, err := c.reviews.ResolveOpenForMember(ctx, member, actor, "unlocked")
	if err != nil {
		return UnlockResult{Transition: tr}, fmt.Errorf("resolve review cases: %w", err)
	}
	return UnlockResult{Transition: tr, ResolvedCases: resolved}, nil
}

// MemberJoined marks the member active and applies the rejoin reset.
func (c *Coordinator) MemberJoined(ctx context.Context, member evidence.Member) (ledger.Transition, error) {
	if err := member.Validate(); err != nil {
		return ledger.Transition{}, services.Wrap(services.ErrValidation, "verification", "member joined", "invalid member", err)
	}
	c.membership.Joined(member)
	ctx = services.WithMember(ctx, member.CommunityID, member.UserID)
	tr, err := c.ledger.Rejoin(ctx, member)
	if err != nil {
		return tr, err
	}
	if tr.Changed {
		if _, err := c.reviews.ResolveOpenForMember(ctx, member, "rejoin", "reset on rejoin"); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "review cases not resolved after rejoin", "review_resolve_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "resolve the cases with 'warden review resolve'"),
				logging.String(logging.FieldImpact, "stale review cases stay open"),
			)
		}
	}
	return tr, nil
}

// MemberLeft marks the member inactive. Jobs still in the queue complete,
// but their grant and rename are skipped.
func (c *Coordinator) MemberLeft(_ context.Context, member evidence.Member) error {
	if err := member.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "verification", "member left", "invalid member", err)
	}
	c.membership.Left(member)
	return nil
}

// Membership exposes the active member registry.
func (c *Coordinator) Membership() *Membership {
	return c.membership
}

func (c *Coordinator) reportConfiguration(ctx context.Context, communityID string, cause error) {
	if cause == nil {
		return
	}
	if err := c.notifier.Publish(ctx, notifications.EventConfigurationError, notifications.Payload{
		"community": communityID,
		"error":     cause,
		"hint":      "set a privilege with 'warden community set " + communityID + " --privilege ID'",
	}); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("configuration error notification failed", logging.Error(err))
	}
}
