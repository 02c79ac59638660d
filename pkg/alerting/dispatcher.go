package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/callisto/pkg/ledger"
	"mercator-hq/callisto/pkg/policy"
)

// Recipients resolves which address a subject's alerts go to.
type Recipients struct {
	// BySubject maps subject ids to explicit recipients.
	BySubject map[string]string

	// Default receives alerts for subjects with no explicit mapping.
	// Empty means unmapped subjects are skipped with a consistency error.
	Default string
}

// Recipient returns the address for a subject, or "".
func (r Recipients) Recipient(subjectID string) string {
	if addr, ok := r.BySubject[subjectID]; ok {
		return addr
	}
	return r.Default
}

// Reporter receives dispatch outcomes. The telemetry layer implements it;
// a nil Reporter disables reporting.
type Reporter interface {
	AlertDispatched(kind Kind, severity Severity, succeeded bool)
}

// Notifier is the delivery transport the dispatcher hands messages to.
// Matches notify.Notifier; declared here so the package depends only on
// the behavior it needs.
type Notifier interface {
	Deliver(ctx context.Context, recipient, subject, body string) error
}

// DispatcherConfig contains configuration for the alert dispatcher.
type DispatcherConfig struct {
	// Recipients routes subjects to addresses.
	Recipients Recipients

	// Workers is the number of subjects evaluated concurrently during a
	// sweep. The alert ledger's claim transaction keeps concurrent workers
	// from double-dispatching.
	// Default: 4
	Workers int
}

// Dispatcher runs the evaluate → classify → claim → deliver → resolve
// pipeline for subjects with alerting enabled.
type Dispatcher struct {
	evaluator *Evaluator
	alerts    Store
	policies  policyToucher
	notifier  Notifier
	config    DispatcherConfig
	reporter  Reporter
	logger    *slog.Logger
	now       func() time.Time

	recipientsMu sync.RWMutex
	recipients   Recipients
}

// policyToucher is the slice of the policy store the dispatcher needs.
type policyToucher interface {
	SubjectsWithAlerts(ctx context.Context, t time.Time) ([]string, error)
	SetLastAlert(ctx context.Context, id string, t time.Time) error
}

// NewDispatcher creates an alert dispatcher.
func NewDispatcher(evaluator *Evaluator, alerts Store, policies policyToucher, notifier Notifier, config DispatcherConfig) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	return &Dispatcher{
		evaluator:  evaluator,
		alerts:     alerts,
		policies:   policies,
		notifier:   notifier,
		config:     config,
		recipients: config.Recipients,
		logger:     slog.Default().With("component", "alerting.dispatcher"),
		now:        time.Now,
	}
}

// SetRecipients replaces the recipient routing table. Safe to call while
// sweeps are running; in-flight subjects may still use the old table.
func (d *Dispatcher) SetRecipients(r Recipients) {
	d.recipientsMu.Lock()
	d.recipients = r
	d.recipientsMu.Unlock()
}

func (d *Dispatcher) recipientFor(subjectID string) string {
	d.recipientsMu.RLock()
	defer d.recipientsMu.RUnlock()
	return d.recipients.Recipient(subjectID)
}

// WithReporter attaches a dispatch outcome reporter.
func (d *Dispatcher) WithReporter(r Reporter) *Dispatcher {
	d.reporter = r
	return d
}

// WithClock overrides the dispatcher's clock. For tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	// Subjects is how many subjects were evaluated.
	Subjects int `json:"subjects"`

	// Dispatched is how many alerts were delivered successfully.
	Dispatched int `json:"dispatched"`

	// Skipped counts subjects below threshold, without active policies,
	// or suppressed by the cooldown.
	Skipped int `json:"skipped"`

	// Failures counts per-subject errors: evaluation failures, missing
	// recipients, and failed deliveries. They never abort the sweep.
	Failures int `json:"failures"`
}

// Sweep evaluates every subject with an enabled, active policy and
// dispatches qualifying alerts. Per-subject failures are isolated; only an
// unreachable alert ledger aborts the run.
func (d *Dispatcher) Sweep(ctx context.Context) (*SweepResult, error) {
	now := d.now().UTC()

	subjects, err := d.policies.SubjectsWithAlerts(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("listing subjects with alerts: %w", err)
	}

	result := &SweepResult{Subjects: len(subjects)}
	if len(subjects) == 0 {
		return result, nil
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		fatalErr error
		wg       sync.WaitGroup
	)
	work := make(chan string)

	for i := 0; i < d.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for subjectID := range work {
				outcome, err := d.processSubject(sweepCtx, subjectID)

				mu.Lock()
				switch {
				case err != nil && isStoreFailure(err):
					// A backing store is unreachable; every remaining
					// subject would fail the same way.
					if fatalErr == nil {
						fatalErr = err
						cancel()
					}
				case err != nil:
					result.Failures++
					d.logger.Warn("subject sweep failed",
						"subject_id", subjectID,
						"error", err,
					)
				case outcome == outcomeDispatched:
					result.Dispatched++
				case outcome == outcomeFailed:
					result.Failures++
				default:
					result.Skipped++
				}
				mu.Unlock()
			}
		}()
	}

	for _, subjectID := range subjects {
		select {
		case work <- subjectID:
		case <-sweepCtx.Done():
		}
		if sweepCtx.Err() != nil {
			break
		}
	}
	close(work)
	wg.Wait()

	if fatalErr != nil {
		return result, fatalErr
	}

	d.logger.Info("sweep completed",
		"subjects", result.Subjects,
		"dispatched", result.Dispatched,
		"skipped", result.Skipped,
		"failures", result.Failures,
	)
	return result, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeDispatched
	outcomeFailed
)

// processSubject runs the pipeline for one subject. Manual sweep triggers
// go through this same path, so they never bypass deduplication.
func (d *Dispatcher) processSubject(ctx context.Context, subjectID string) (outcome, error) {
	status, err := d.evaluator.Evaluate(ctx, subjectID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("evaluating subject %s: %w", subjectID, err)
	}
	if status == nil {
		return outcomeSkipped, nil
	}

	kind, severity, detail, ok := Classify(status)
	if !ok {
		return outcomeSkipped, nil
	}

	subject, body := RenderMessage(status, kind, severity)
	event := &Event{
		SubjectID:   status.SubjectID,
		PolicyID:    status.Policy.ID,
		Kind:        kind,
		Severity:    severity,
		PercentUsed: status.PercentUsed,
		AmountSpent: status.Spent,
		LimitAmount: status.Limit,
		Message:     body,
		CreatedAt:   d.now().UTC(),
		Detail:      detail,
	}

	claimed, err := d.alerts.Claim(ctx, event)
	if err != nil {
		return outcomeSkipped, err
	}
	if !claimed {
		// Cooldown holds; nothing recorded.
		return outcomeSkipped, nil
	}

	recipient := d.recipientFor(subjectID)
	if recipient == "" {
		consistencyErr := NewConsistencyError(subjectID, "no alert recipient configured")
		if resolveErr := d.alerts.Resolve(ctx, event.ID, false, time.Time{}, consistencyErr.Error()); resolveErr != nil {
			return outcomeFailed, resolveErr
		}
		return outcomeFailed, consistencyErr
	}

	deliverErr := d.notifier.Deliver(ctx, recipient, subject, body)
	if deliverErr != nil {
		// Recorded, not propagated: the cooldown does not start, so the
		// next sweep retries.
		if err := d.alerts.Resolve(ctx, event.ID, false, time.Time{}, deliverErr.Error()); err != nil {
			return outcomeFailed, err
		}
		d.report(kind, severity, false)
		d.logger.Warn("alert delivery failed",
			"subject_id", subjectID,
			"policy_id", status.Policy.ID,
			"kind", string(kind),
			"error", deliverErr,
		)
		return outcomeFailed, nil
	}

	deliveredAt := d.now().UTC()
	if err := d.alerts.Resolve(ctx, event.ID, true, deliveredAt, ""); err != nil {
		return outcomeFailed, err
	}
	if err := d.policies.SetLastAlert(ctx, status.Policy.ID, deliveredAt); err != nil {
		d.logger.Warn("failed to stamp last alert on policy",
			"policy_id", status.Policy.ID,
			"error", err,
		)
	}

	d.report(kind, severity, true)
	d.logger.Info("alert dispatched",
		"subject_id", subjectID,
		"policy_id", status.Policy.ID,
		"kind", string(kind),
		"severity", string(severity),
		"percent_used", status.PercentUsed,
	)
	return outcomeDispatched, nil
}

func (d *Dispatcher) report(kind Kind, severity Severity, succeeded bool) {
	if d.reporter != nil {
		d.reporter.AlertDispatched(kind, severity, succeeded)
	}
}

// Classify maps a budget status to an alert kind and severity. Over-budget
// takes precedence: a subject at 120% gets only the over-budget alert,
// never a threshold alert in the same pass. Returns ok=false when no alert
// condition holds.
func Classify(status *BudgetStatus) (Kind, Severity, Detail, bool) {
	switch {
	case status.PercentUsed >= 1.0:
		return KindOverBudget, SeverityCritical,
			OverBudgetDetail{Overage: status.Overage()}, true
	case status.PercentUsed >= status.Policy.AlertThreshold:
		severity := SeverityInfo
		if status.PercentUsed >= 0.90 {
			severity = SeverityWarning
		}
		return KindThreshold, severity,
			ThresholdDetail{Threshold: status.Policy.AlertThreshold, PercentUsed: status.PercentUsed}, true
	default:
		return "", "", nil, false
	}
}

// isStoreFailure reports whether err came from one of the backing
// stores. The cost ledger, the policy store, and the alert ledger are
// all load-bearing for a sweep: with any of them unreachable, every
// subject fails the same way and the run should abort instead of
// logging N identical per-subject failures.
func isStoreFailure(err error) bool {
	var alertErr *StorageError
	if errors.As(err, &alertErr) {
		return true
	}
	var ledgerErr *ledger.StorageError
	if errors.As(err, &ledgerErr) {
		return true
	}
	var policyErr *policy.StorageError
	return errors.As(err, &policyErr)
}
