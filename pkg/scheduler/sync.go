package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/callisto/pkg/ledger"
	"mercator-hq/callisto/pkg/ledger/storage"
	"mercator-hq/callisto/pkg/provider"
	"mercator-hq/callisto/pkg/registry"
)

// SyncResult summarizes one sync cycle across all accounts.
type SyncResult struct {
	// Accounts is the number of accounts attempted.
	Accounts int

	// FailedAccounts counts accounts whose fetch or merge failed
	// entirely. Failures are isolated per account.
	FailedAccounts int

	// Written and Rejected are summed over all per-account merges.
	Written  int
	Rejected int

	// Unroutable counts rows that no assignment or account default
	// could attribute to a subject. They are logged and skipped.
	Unroutable int
}

// Syncer pulls daily usage rows from the provider for every registered
// account, routes them to subjects, and merges them into the cost
// ledger. Re-running a sync for the same day is safe: merges are keyed
// on (subject, account, resource, date) and overwrite in place.
type Syncer struct {
	client   provider.Client
	registry registry.Registry
	store    storage.Backend
	recorder Recorder
	logger   *slog.Logger
}

// Recorder receives merge outcomes. The telemetry layer implements it;
// a nil Recorder disables recording.
type Recorder interface {
	RecordMerge(source string, written, rejected int)
}

// NewSyncer creates a syncer over the given provider, registry, and
// ledger backend.
func NewSyncer(client provider.Client, reg registry.Registry, store storage.Backend) *Syncer {
	return &Syncer{
		client:   client,
		registry: reg,
		store:    store,
		logger:   slog.Default().With("component", "scheduler.sync"),
	}
}

// WithRecorder attaches a merge outcome recorder.
func (s *Syncer) WithRecorder(r Recorder) *Syncer {
	s.recorder = r
	return s
}

// SyncDay fetches and merges usage for a single calendar day across
// all accounts. Accounts are fetched concurrently; a failure in one
// account is counted and logged without aborting the others. An
// unreachable ledger backend fails the whole run.
func (s *Syncer) SyncDay(ctx context.Context, day time.Time) (SyncResult, error) {
	accounts, err := s.registry.Accounts(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	day = ledger.TruncateDay(day)

	var (
		mu       sync.Mutex
		result   = SyncResult{Accounts: len(accounts)}
		fatalErr error
		wg       sync.WaitGroup
	)

	for _, acct := range accounts {
		wg.Add(1)
		go func(acct registry.Account) {
			defer wg.Done()

			written, rejected, unroutable, err := s.syncAccount(ctx, acct, day)

			mu.Lock()
			defer mu.Unlock()
			result.Written += written
			result.Rejected += rejected
			result.Unroutable += unroutable
			if err != nil {
				// A provider failure is isolated to its account; an
				// unreachable ledger fails every account's merge and
				// aborts the run.
				var storageErr *ledger.StorageError
				if errors.As(err, &storageErr) && fatalErr == nil {
					fatalErr = err
				}
				result.FailedAccounts++
				s.logger.Error("account sync failed",
					"account_id", acct.ID,
					"account_name", acct.Name,
					"day", day.Format("2006-01-02"),
					"error", err,
				)
			}
		}(acct)
	}
	wg.Wait()

	if fatalErr != nil {
		return result, fmt.Errorf("sync aborted: %w", fatalErr)
	}

	if s.recorder != nil {
		s.recorder.RecordMerge(ledger.SourceSync, result.Written, result.Rejected)
	}

	s.logger.Info("sync cycle completed",
		"day", day.Format("2006-01-02"),
		"accounts", result.Accounts,
		"failed_accounts", result.FailedAccounts,
		"written", result.Written,
		"rejected", result.Rejected,
		"unroutable", result.Unroutable,
	)
	return result, nil
}

func (s *Syncer) syncAccount(ctx context.Context, acct registry.Account, day time.Time) (written, rejected, unroutable int, err error) {
	rows, err := s.client.FetchDailyCosts(ctx, acct.CredentialRef, day, day)
	if err != nil {
		return 0, 0, 0, err
	}

	records := make([]*ledger.CostRecord, 0, len(rows))
	for _, row := range rows {
		subjectID, err := s.registry.SubjectFor(ctx, acct.ID, row.ResourceKey)
		if err != nil {
			unroutable++
			s.logger.Warn("skipping unroutable usage row",
				"account_id", acct.ID,
				"resource_key", row.ResourceKey,
				"error", err,
			)
			continue
		}
		records = append(records, &ledger.CostRecord{
			SubjectID:     subjectID,
			AccountID:     acct.ID,
			ResourceID:    row.ResourceKey,
			Service:       row.Service,
			UsageDate:     row.Date,
			Amount:        row.Amount,
			Currency:      row.Currency,
			UsageQuantity: row.UsageQuantity,
			UsageUnit:     row.UsageUnit,
			Source:        ledger.SourceSync,
		})
	}

	if len(records) == 0 {
		return 0, 0, unroutable, nil
	}

	batch, err := s.store.MergeBatch(ctx, records)
	if err != nil {
		return 0, 0, unroutable, err
	}
	for _, re := range batch.Errors {
		s.logger.Warn("rejected usage record",
			"account_id", acct.ID,
			"index", re.Index,
			"error", re.Err,
		)
	}
	return batch.Written, batch.Rejected, unroutable, nil
}
