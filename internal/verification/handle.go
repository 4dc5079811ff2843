package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"warden/internal/community"
	"warden/internal/evidence"
	"warden/internal/gateway"
	"warden/internal/ledger"
	"warden/internal/logging"
	"warden/internal/notifications"
	"warden/internal/review"
	"warden/internal/services"
)

// pass carries one submission through HandleSubmission.
type pass struct {
	sub      evidence.Submission
	member   evidence.Member
	logger   *slog.Logger
	settings *community.Settings
	decision Decision
}

// HandleSubmission processes one submission to a Decision. It never returns
// an error: infrastructure faults resolve as TransientRetry so the member can
// resubmit without losing an attempt. The member's reply and any review
// channel post are delivered before it returns.
func (c *Coordinator) HandleSubmission(ctx context.Context, sub evidence.Submission) Decision {
	start := c.clock()
	member := sub.Member()
	ctx = services.WithSubmissionID(services.WithMember(ctx, member.CommunityID, member.UserID), sub.ID)

	p := &pass{
		sub:    sub,
		member: member,
		logger: logging.WithContext(ctx, c.logger),
		decision: Decision{
			SubmissionID: sub.ID,
			CommunityID:  member.CommunityID,
			UserID:       member.UserID,
			ImageRef:     sub.ImageRef,
		},
	}

	c.decide(ctx, p)

	d := &p.decision
	d.DecidedAt = c.clock().UTC()
	d.Elapsed = d.DecidedAt.Sub(start)

	c.deliver(ctx, p)
	c.metrics.IncrementDecision(string(d.Kind))
	c.logDecision(p)
	return *d
}

func (c *Coordinator) decide(ctx context.Context, p *pass) {
	d := &p.decision

	// The member may have been locked between admission and now.
	state, err := c.ledger.State(ctx, p.member)
	if err != nil {
		c.infrastructureFault(p, "read ledger state", err)
		return
	}
	d.State = state
	if state.LockState.Locked() {
		d.Kind = KindRejected
		d.Reason = ReasonLocked
		d.Message = lockedMessage(state.LockState)
		return
	}

	settings, err := c.settings.Get(ctx, p.member.CommunityID)
	if err != nil {
		c.infrastructureFault(p, "load community settings", err)
		return
	}
	p.settings = settings
	if err := settings.Check(p.member.CommunityID); err != nil {
		c.configurationError(ctx, p, err)
		return
	}

	data, err := c.fetch(ctx, p.sub.ImageRef)
	if err != nil {
		d.Result = evidence.TransientIOError(err.Error())
		c.transient(ctx, p)
		return
	}

	analysisStart := c.clock()
	d.Result = c.analyze(ctx, data)
	c.metrics.ObserveAnalysis(c.clock().Sub(analysisStart))

	switch {
	case d.Result.IsSuccess():
		c.resolve(ctx, p)
	case d.Result.IsStrike():
		c.strike(ctx, p)
	default:
		c.transient(ctx, p)
	}
}

func (c *Coordinator) fetch(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	data, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "verification", "fetch", fmt.Sprintf("no evidence after %s", c.fetchTimeout), err)
		}
		return nil, err
	}
	return data, nil
}

// analyze bounds the analyzer even when it ignores cancellation. On timeout
// the analyzer goroutine may outlive the job until its next cancellation
// check: one preprocessing stage or one template row.
func (c *Coordinator) analyze(ctx context.Context, data []byte) evidence.AnalysisResult {
	ctx, cancel := context.WithTimeout(ctx, c.analysisTimeout)
	defer cancel()
	done := make(chan evidence.AnalysisResult, 1)
	go func() {
		done <- c.analyzer.Analyze(ctx, data)
	}()
	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		return evidence.TransientIOError(fmt.Sprintf("analysis did not finish within %s", c.analysisTimeout))
	}
}

// resolve looks the extracted id up in the directory.
func (c *Coordinator) resolve(ctx context.Context, p *pass) {
	d := &p.decision
	entry, err := c.directory.Lookup(ctx, d.Result.ExtractedID)
	switch {
	case err == nil:
		c.verified(ctx, p, entry.CanonicalName)
	case errors.Is(err, services.ErrConfiguration):
		c.configurationError(ctx, p, err)
	case errors.Is(err, services.ErrNotFound):
		c.mismatch(ctx, p, services.Wrap(services.ErrIdentityMismatch, "verification", "directory lookup",
			"extracted id "+d.Result.ExtractedID+" is not in the directory", err))
	default:
		c.configurationError(ctx, p, services.Wrap(services.ErrConfiguration, "verification", "directory lookup", "unexpected directory failure", err))
	}
}

func (c *Coordinator) verified(ctx context.Context, p *pass, name string) {
	d := &p.decision
	tr, ok := c.record(ctx, p, ledger.EventVerified)
	if !ok {
		return
	}
	d.Kind = KindVerified
	d.Reason = ReasonVerified
	d.State = tr.To
	d.CanonicalName = name
	d.Message = verifiedMessage(name)

	if !c.membership.Active(p.member) {
		d.PrivilegeSuppressed = true
		p.logger.Info("member left before verification finished; grant skipped",
			logging.String(logging.FieldEventType, "privilege_suppressed"),
		)
		return
	}
	c.gatewayResult(p, gateway.ActionSetDisplayName, c.gateway.SetDisplayName(ctx, p.member, name))
	c.gatewayResult(p, gateway.ActionGrantPrivilege, c.gateway.GrantPrivilege(ctx, p.member, p.settings.PrivilegeID))
}

func (c *Coordinator) mismatch(ctx context.Context, p *pass, cause error) {
	d := &p.decision
	tr, ok := c.record(ctx, p, ledger.EventMismatch)
	if !ok {
		return
	}
	d.Kind = KindEscalated
	d.Reason = ReasonMismatch
	d.State = tr.To
	d.Detail = cause.Error()
	d.Failure = services.Classify(cause)
	d.Message = mismatchMessage(tr.To)
	c.escalate(ctx, p)
}

func (c *Coordinator) strike(ctx context.Context, p *pass) {
	d := &p.decision
	tr, ok := c.record(ctx, p, ledger.EventForResult(d.Result))
	if !ok {
		return
	}
	d.State = tr.To
	d.Detail = d.Result.Detail
	if tr.Locked {
		d.Kind = KindEscalated
		d.Reason = ReasonStrikeLimit
		d.Message = strikeLockMessage(tr.To)
		c.escalate(ctx, p)
		return
	}
	d.Kind = KindRetryableReject
	if d.Result.Outcome == evidence.OutcomeInauthentic {
		d.Reason = ReasonInauthentic
		d.Message = inauthenticMessage(tr.To)
		return
	}
	d.Reason = ReasonUnreadable
	d.Message = unreadableMessage(tr.To)
}

func (c *Coordinator) transient(ctx context.Context, p *pass) {
	d := &p.decision
	d.Kind = KindTransientRetry
	d.Reason = ReasonTransient
	d.Detail = d.Result.Detail
	d.Message = transientMessage()
	// Creates the record on first contact; the state itself never changes.
	if tr, err := c.ledger.Record(ctx, p.member, ledger.EventTransient); err == nil {
		d.State = tr.To
	} else {
		p.logger.Debug("ledger touch failed for transient result", logging.Error(err))
	}
}

// record applies event and settles the decision itself when the ledger
// refuses. It reports whether the caller should continue.
func (c *Coordinator) record(ctx context.Context, p *pass, event ledger.EventKind) (ledger.Transition, bool) {
	d := &p.decision
	tr, err := c.ledger.Record(ctx, p.member, event)
	switch {
	case err == nil:
		return tr, true
	case errors.Is(err, ledger.ErrLocked):
		d.Kind = KindRejected
		d.Reason = ReasonLocked
		d.State = tr.From
		d.Message = lockedMessage(tr.From.LockState)
	default:
		c.infrastructureFault(p, "record "+string(event), err)
	}
	return tr, false
}

func (c *Coordinator) infrastructureFault(p *pass, operation string, err error) {
	d := &p.decision
	d.Kind = KindTransientRetry
	d.Reason = ReasonTransient
	d.Detail = operation + ": " + err.Error()
	d.Message = transientMessage()
	if d.Result.Outcome == "" {
		d.Result = evidence.TransientIOError(d.Detail)
	}
	logging.ErrorWithContext(p.logger, "verification infrastructure failure", "verification_infrastructure",
		logging.String("operation", operation),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the ledger and settings storage"),
	)
}

func (c *Coordinator) configurationError(ctx context.Context, p *pass, err error) {
	d := &p.decision
	d.Kind = KindConfigurationError
	d.Reason = ReasonConfiguration
	d.Detail = err.Error()
	d.Failure = services.Classify(err)
	d.Message = notConfiguredMessage()
	logging.ErrorWithContext(p.logger, "verification blocked by configuration", "configuration_error",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix community settings or the directory source"),
	)
	c.reportConfiguration(ctx, p.member.CommunityID, err)
}

// escalate opens the review case and alerts operators. Failures here are
// logged; the lock itself is already persisted.
func (c *Coordinator) escalate(ctx context.Context, p *pass) {
	d := &p.decision
	c.metrics.IncrementLockout(string(d.Reason))

	rc, err := c.reviews.Open(ctx, review.NewCase{
		SubmissionID: d.SubmissionID,
		Member:       p.member,
		Reason:       string(d.Reason),
		ImageRef:     d.ImageRef,
		ExtractedID:  d.Result.ExtractedID,
		Detail:       d.Detail,
	})
	if err != nil {
		logging.ErrorWithContext(p.logger, "review case not recorded", "review_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the review store; the member is locked without a case"),
		)
	} else {
		d.ReviewCaseID = rc.ID
	}

	if err := c.notifier.Publish(ctx, notifications.EventEscalation, notifications.Payload{
		"user":        p.member.UserID,
		"community":   p.member.CommunityID,
		"reason":      string(d.Reason),
		"extractedId": d.Result.ExtractedID,
		"imageRef":    d.ImageRef,
		"caseId":      d.ReviewCaseID,
	}); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("escalation notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "escalation_notify_failed"),
			logging.String(logging.FieldErrorHint, "check ntfy and SES settings"),
			logging.String(logging.FieldImpact, "operators rely on the review list"),
		)
	}
}

// deliver replies to the member and posts to the review channel.
func (c *Coordinator) deliver(ctx context.Context, p *pass) {
	d := &p.decision
	if d.Message != "" {
		c.gatewayResult(p, gateway.ActionNotify, c.gateway.Notify(ctx, p.member, d.Message))
	}
	if p.settings == nil || p.settings.ReviewChannelID == "" {
		return
	}
	var text string
	switch {
	case d.Kind == KindVerified:
		text = announceVerified(*d)
	case d.Kind == KindEscalated && d.Reason == ReasonMismatch:
		text = announceMismatch(*d)
	case d.Kind == KindEscalated:
		text = announceStrikeLock(*d)
	default:
		return
	}
	c.gatewayResult(p, gateway.ActionAnnounce, c.gateway.Announce(ctx, p.member.CommunityID, p.settings.ReviewChannelID, text, d.ImageRef))
}

func (c *Coordinator) gatewayResult(p *pass, action gateway.Action, err error) {
	if err == nil {
		return
	}
	c.metrics.IncrementGatewayFailure(string(action))
	logging.WarnWithContext(p.logger, "gateway action failed", "gateway_failed",
		logging.String("action", string(action)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the platform adapter"),
		logging.String(logging.FieldImpact, "member may need manual follow up"),
	)
}

func (c *Coordinator) logDecision(p *pass) {
	d := p.decision
	attrs := logging.DecisionAttrs("verification", string(d.Kind), string(d.Reason))
	attrs = append(attrs,
		logging.String(logging.FieldEventType, "verification_decision"),
		logging.String("outcome", string(d.Result.Outcome)),
		logging.String("state", d.State.String()),
		logging.Int("attempts", d.State.AttemptCount),
		logging.Duration("elapsed", d.Elapsed),
	)
	if d.Result.ExtractedID != "" {
		attrs = append(attrs, logging.String("extracted_id", d.Result.ExtractedID))
	}
	if d.Result.Region != "" {
		attrs = append(attrs, logging.String("region", d.Result.Region), logging.Float64("score", d.Result.Score))
	}
	if d.CanonicalName != "" {
		attrs = append(attrs, logging.String("canonical_name", d.CanonicalName))
	}
	if d.ReviewCaseID != "" {
		attrs = append(attrs, logging.String("review_case_id", d.ReviewCaseID))
	}
	if d.PrivilegeSuppressed {
		attrs = append(attrs, logging.Bool("privilege_suppressed", true))
	}
	if d.Detail != "" {
		attrs = append(attrs, logging.String("detail", d.Detail))
	}
	if d.Kind.Terminal() {
		p.logger.Warn("verification decision", logging.Args(attrs...)...)
		return
	}
	p.logger.Info("verification decision", logging.Args(attrs...)...)
}
