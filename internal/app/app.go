// Package app builds the application context: every long-lived
// collaborator of the pipeline, constructed once at startup and passed
// explicitly to whatever needs it.
package app

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/leadmail/internal/ai"
	"github.com/nhle/leadmail/internal/credential"
	"github.com/nhle/leadmail/internal/ingest"
	"github.com/nhle/leadmail/internal/lead"
	"github.com/nhle/leadmail/internal/logging"
	"github.com/nhle/leadmail/internal/massmail"
	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/source"
	"github.com/nhle/leadmail/internal/source/email"
	"github.com/nhle/leadmail/internal/store"
	appsync "github.com/nhle/leadmail/internal/sync"
)

// Options supplies what New cannot read from the configuration.
type Options struct {
	// LogWriter receives log output. Defaults to os.Stderr.
	LogWriter io.Writer

	// Secrets holds the encryption key and global AI key. Defaults to
	// the system keyring.
	Secrets credential.Store

	// EncryptionKey overrides the keyring key (LEADMAIL_ENCRYPTION_KEY).
	EncryptionKey string

	// AIAPIKey overrides the keyring AI key.
	AIAPIKey string

	// Connector replaces the IMAP connector. It is still wrapped with
	// retry.
	Connector source.Connector

	// RetrySleep replaces the reconnect backoff wait.
	RetrySleep source.SleepFunc

	HTTPClient *http.Client
}

// App is the application context.
type App struct {
	Config  *model.AppConfig
	Logger  zerolog.Logger
	Store   *store.SQLiteStore
	Secrets credential.Store

	Connector source.Connector
	Resolver  *lead.Resolver
	AI        *ai.Factory
	Pipeline  *ingest.Pipeline
	Scheduler *appsync.Scheduler
}

// New wires the application from cfg. Close releases what it opened.
func New(cfg *model.AppConfig, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, w)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}

	secrets := opts.Secrets
	if secrets == nil {
		ring, err := credential.OpenKeyring()
		if err != nil {
			return nil, fmt.Errorf("opening keyring: %w", err)
		}
		secrets = ring
	}

	cipher, err := credential.LoadCipher(opts.EncryptionKey, secrets)
	if err != nil {
		return nil, fmt.Errorf("loading encryption key: %w", err)
	}

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path, store.WithSealer(cipher))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	aiKey := opts.AIAPIKey
	if aiKey == "" {
		aiKey, err = secrets.Get(credential.KeyAIAPI)
		if err != nil && !errors.Is(err, credential.ErrNotFound) {
			logger.Warn().Err(err).Msg("reading AI key from keyring")
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.AI.TimeoutSec) * time.Second}
	}

	conn := opts.Connector
	if conn == nil {
		conn = email.NewConnector(email.Options{
			DialTimeout: time.Duration(cfg.IMAP.DialTimeoutSec) * time.Second,
			OpTimeout:   time.Duration(cfg.IMAP.OpTimeoutSec) * time.Second,
			Mailbox:     cfg.IMAP.Mailbox,
		}, logger)
	}
	var retryOpts []source.RetryOption
	if opts.RetrySleep != nil {
		retryOpts = append(retryOpts, source.WithSleep(opts.RetrySleep))
	}
	retrying := source.WithRetry(conn, cfg.IMAP.RetryDelays(), logger, retryOpts...)

	resolver := lead.NewResolver(s, logger)
	factory := ai.NewFactory(cfg.AI, aiKey, httpClient, logger)

	pipeline := ingest.New(ingest.Deps{
		Store:       s,
		Connector:   retrying,
		Resolver:    resolver,
		Detector:    massmail.NewDetector(),
		Classifiers: ingest.ClassifiersFrom(factory),
		Logger:      logger,
	}, ingest.Options{
		InitialLookback: cfg.Scheduler.InitialLookback(),
		MaxLookback:     cfg.Scheduler.MaxLookback(),
	})

	scheduler := appsync.New(s, pipeline, appsync.Options{
		Interval:    cfg.Scheduler.Interval(),
		CycleBudget: cfg.Scheduler.CycleBudget(),
		Logger:      logger,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     s,
		Secrets:   secrets,
		Connector: retrying,
		Resolver:  resolver,
		AI:        factory,
		Pipeline:  pipeline,
		Scheduler: scheduler,
	}, nil
}

// Close stops the scheduler and closes the store.
func (a *App) Close() error {
	a.Scheduler.Stop()
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
