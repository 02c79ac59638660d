package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/callisto/pkg/aggregate"
	"mercator-hq/callisto/pkg/alerting"
	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/forecast"
	"mercator-hq/callisto/pkg/ledger/storage"
	"mercator-hq/callisto/pkg/notify"
	"mercator-hq/callisto/pkg/policy"
	"mercator-hq/callisto/pkg/provider"
	"mercator-hq/callisto/pkg/registry"
	"mercator-hq/callisto/pkg/scheduler"
	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// app bundles the wired components shared by the serve, sweep, sync,
// and cleanup commands.
type app struct {
	cfg *config.Config

	// db is the shared SQLite handle behind the three stores. Nil for
	// the memory backend.
	db *sql.DB

	store      storage.Backend
	policies   policy.Store
	alerts     alerting.Store
	registry   *registry.StaticRegistry
	client     provider.Client
	aggregator *aggregate.Engine
	forecaster *forecast.Engine
	evaluator  *alerting.Evaluator
	dispatcher *alerting.Dispatcher
	syncer     *scheduler.Syncer
	cleaner    *scheduler.Cleaner
	collector  *metrics.Collector
}

// loadConfigAndLogging loads the configuration file and installs the
// default logger from its telemetry section. A non-empty logLevel
// overrides both the file and the --verbose flag.
func loadConfigAndLogging(path, logLevel string) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	return cfg, nil
}

// buildApp wires the full component graph from configuration. With demo
// set, external dependencies are replaced: storage runs in memory, the
// provider client is a fake, and alerts go to the log.
func buildApp(cfg *config.Config, demo bool) (*app, error) {
	a := &app{cfg: cfg}

	storeConfig := alerting.StoreConfig{Cooldown: cfg.Alerting.Cooldown}

	backend := cfg.Storage.Backend
	if demo {
		backend = "memory"
	}
	switch backend {
	case "sqlite":
		db, err := openSQLite(&cfg.Storage.SQLite)
		if err != nil {
			return nil, err
		}
		a.db = db

		a.store, err = storage.NewSQLiteBackendFromDB(db)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initializing cost ledger: %w", err)
		}
		a.policies, err = policy.NewSQLiteStoreFromDB(db)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initializing policy store: %w", err)
		}
		a.alerts, err = alerting.NewSQLiteStoreFromDB(db, storeConfig)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initializing alert store: %w", err)
		}
	case "memory":
		a.store = storage.NewMemoryBackend()
		a.policies = policy.NewMemoryStore()
		a.alerts = alerting.NewMemoryStore(storeConfig)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}

	a.registry = registry.NewStaticRegistry(registryAccounts(cfg), registryAssignments(cfg))

	if demo {
		a.client = provider.NewFakeClient()
	} else {
		a.client = provider.NewHTTPClient(provider.HTTPConfig{
			BaseURL:         cfg.Provider.BaseURL,
			RequestTimeout:  cfg.Provider.RequestTimeout,
			MaxRetries:      cfg.Provider.MaxRetries,
			InitialBackoff:  cfg.Provider.InitialBackoff,
			BreakerFailures: uint32(cfg.Provider.BreakerFailures),
			BreakerCooldown: cfg.Provider.BreakerCooldown,
		})
	}

	var notifier alerting.Notifier
	switch {
	case demo, cfg.Alerting.Notifier == "log":
		notifier = notify.NewLogNotifier()
	case cfg.Alerting.Notifier == "smtp":
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Alerting.SMTP.Host,
			Port:     cfg.Alerting.SMTP.Port,
			From:     cfg.Alerting.SMTP.From,
			Username: cfg.Alerting.SMTP.Username,
			Password: cfg.Alerting.SMTP.Password,
			Timeout:  cfg.Alerting.SMTP.Timeout,
		})
	default:
		a.Close()
		return nil, fmt.Errorf("unsupported notifier: %s", cfg.Alerting.Notifier)
	}

	if cfg.Telemetry.Metrics.Enabled {
		a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	a.aggregator = aggregate.NewEngine(a.store)
	a.forecaster = forecast.NewEngine(a.aggregator)
	a.evaluator = alerting.NewEvaluator(a.policies, a.aggregator)

	a.dispatcher = alerting.NewDispatcher(a.evaluator, a.alerts, a.policies, notifier, alerting.DispatcherConfig{
		Recipients: dispatchRecipients(cfg),
		Workers:    cfg.Alerting.Workers,
	})
	if a.collector != nil {
		a.dispatcher.WithReporter(a.collector.Alerts())
	}

	a.syncer = scheduler.NewSyncer(a.client, a.registry, a.store)
	if a.collector != nil {
		a.syncer.WithRecorder(a.collector.Ledger())
	}

	a.cleaner = scheduler.NewCleaner(a.store, a.alerts, scheduler.CleanerConfig{
		CostRetentionMonths:  cfg.Retention.CostMonths,
		AlertRetentionMonths: cfg.Retention.AlertMonths,
	})

	return a, nil
}

// Close releases the app's resources. Safe on a partially built app.
func (a *app) Close() error {
	var firstErr error
	for _, closer := range []interface{ Close() error }{a.alerts, a.policies, a.store} {
		if closer == nil {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openSQLite opens and configures the shared database handle used by the
// ledger, policy, and alert stores.
func openSQLite(cfg *config.SQLiteConfig) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", cfg.Path, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if cfg.WALMode {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}
	if cfg.BusyTimeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout/time.Millisecond)); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	return db, nil
}

func registryAccounts(cfg *config.Config) []registry.Account {
	accounts := make([]registry.Account, 0, len(cfg.Registry.Accounts))
	for _, ac := range cfg.Registry.Accounts {
		accounts = append(accounts, registry.Account{
			ID:               ac.ID,
			Name:             ac.Name,
			CredentialRef:    ac.CredentialRef,
			DefaultSubjectID: ac.DefaultSubjectID,
		})
	}
	return accounts
}

func registryAssignments(cfg *config.Config) []registry.Assignment {
	assignments := make([]registry.Assignment, 0, len(cfg.Registry.Assignments))
	for _, as := range cfg.Registry.Assignments {
		assignments = append(assignments, registry.Assignment{
			AccountID:   as.AccountID,
			ResourceKey: as.ResourceKey,
			SubjectID:   as.SubjectID,
		})
	}
	return assignments
}

func dispatchRecipients(cfg *config.Config) alerting.Recipients {
	return alerting.Recipients{
		BySubject: cfg.Alerting.Recipients,
		Default:   cfg.Alerting.DefaultRecipient,
	}
}
