package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"warden/internal/logging"
)

// Service applies ledger events through a Repository under one Policy.
type Service struct {
	repo   Repository
	policy Policy
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPolicy(policy Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("ledger repository is required")
	}
	svc := &Service{
		repo:   repo,
		policy: DefaultPolicy(),
		logger: logging.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.policy.MaxAttempts <= 0 {
		return nil, fmt.Errorf("ledger policy: max attempts must be positive (got %d)", svc.policy.MaxAttempts)
	}
	if !svc.policy.StrikeLock.Locked() || !svc.policy.MismatchLock.Locked() {
		return nil, errors.New("ledger policy: lock targets must be lock states")
	}
	svc.logger = logging.NewComponentLogger(svc.logger, "ledger")
	return svc, nil
}

// Policy returns the active policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// State returns the member's state, Open(0) when no record exists.
func (s *Service) State(ctx context.Context, key Key) (State, error) {
	if err := key.Validate(); err != nil {
		return State{}, err
	}
	rec, err := s.repo.Get(ctx, key)
	if err != nil {
		return State{}, err
	}
	if rec == nil {
		rec = NewRecord(key, s.clock())
	}
	return stateOf(rec, s.policy), nil
}

// Lookup returns the stored record, or nil when the member has none.
func (s *Service) Lookup(ctx context.Context, key Key) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, key)
}

// Record applies an analysis event. A locked record yields ErrLocked with the
// unchanged state in the transition.
func (s *Service) Record(ctx context.Context, key Key, event EventKind) (Transition, error) {
	if !event.isAnalysis() {
		return Transition{}, fmt.Errorf("ledger: %q is not an analysis event", event)
	}
	return s.apply(ctx, key, event)
}

// Unlock is the operator override; it clears any state back to Open(0).
func (s *Service) Unlock(ctx context.Context, key Key, actor string) (Transition, error) {
	tr, err := s.applyExisting(ctx, key, EventAdminUnlock)
	if err != nil {
		return tr, err
	}
	s.logger.Info("ledger record unlocked",
		logging.String(logging.FieldEventType, "ledger_unlock"),
		logging.String(logging.FieldCommunityID, key.CommunityID),
		logging.String(logging.FieldUserID, key.UserID),
		logging.String("actor", strings.TrimSpace(actor)),
		logging.String("previous_state", tr.From.String()),
	)
	return tr, nil
}

// Rejoin clears LockedUntilRejoin and leaves every other state alone.
func (s *Service) Rejoin(ctx context.Context, key Key) (Transition, error) {
	return s.applyExisting(ctx, key, EventRejoin)
}

// applyExisting applies event only when the member already has a record.
// Members who never submitted stay without one.
func (s *Service) applyExisting(ctx context.Context, key Key, event EventKind) (Transition, error) {
	if err := key.Validate(); err != nil {
		return Transition{}, err
	}
	rec, err := s.repo.Get(ctx, key)
	if err != nil {
		return Transition{}, fmt.Errorf("ledger %s for %s: %w", event, key, err)
	}
	if rec == nil {
		open := stateOf(NewRecord(key, s.clock()), s.policy)
		return Transition{Event: event, From: open, To: open}, nil
	}
	return s.apply(ctx, key, event)
}

// ListLocked returns locked records for a community.
func (s *Service) ListLocked(ctx context.Context, communityID string) ([]*Record, error) {
	communityID = strings.TrimSpace(communityID)
	if communityID == "" {
		return nil, errors.New("community id is required")
	}
	return s.repo.ListLocked(ctx, communityID)
}

func (s *Service) apply(ctx context.Context, key Key, event EventKind) (Transition, error) {
	if err := key.Validate(); err != nil {
		return Transition{}, err
	}
	var tr Transition
	_, err := s.repo.Update(ctx, key, func(rec *Record) error {
		var applyErr error
		tr, applyErr = Apply(rec, event, s.policy, s.clock())
		return applyErr
	})
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return tr, ErrLocked
		}
		return tr, fmt.Errorf("ledger %s for %s: %w", event, key, err)
	}
	if tr.Changed {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "ledger_transition"),
			logging.String(logging.FieldCommunityID, key.CommunityID),
			logging.String(logging.FieldUserID, key.UserID),
			logging.String("event", string(event)),
			logging.String("from", tr.From.String()),
			logging.String("to", tr.To.String()),
		}
		if tr.Locked {
			s.logger.Warn("ledger record locked", logging.Args(attrs...)...)
		} else {
			s.logger.Debug("ledger transition", logging.Args(attrs...)...)
		}
	}
	return tr, nil
}
