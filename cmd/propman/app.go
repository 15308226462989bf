package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/storage/filestore"
	"github.com/jrsteele09/go-auth-client/storage/memstore"
	"github.com/jrsteele09/go-auth-client/storage/sqlitestore"
)

// app holds everything a command needs, built once per invocation
type app struct {
	lookuper envconfig.Lookuper
	cfg      config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	closeKV  func() error
	client   *auth.Client
}

func (a *app) setup(ctx context.Context, logOut io.Writer) error {
	cfg, err := config.LoadWith(ctx, a.lookuper)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Str("env", cfg.GetEnv()).
		Logger()

	kv, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		return err
	}
	a.closeKV = closeKV

	a.registry = prometheus.NewRegistry()
	store := sessions.NewStore(kv, sessions.WithLogger(a.logger))
	a.client, err = auth.New(cfg.GetAPIURL(), store,
		auth.WithHTTPClient(&http.Client{Timeout: cfg.GetHTTPTimeout()}),
		auth.WithLogger(a.logger),
		auth.WithMetrics(auth.NewMetrics(a.registry)),
		auth.WithExpiryBuffer(cfg.GetExpiryBuffer()),
	)
	if err != nil {
		_ = closeKV()
		return err
	}
	return nil
}

func (a *app) close() error {
	if a.closeKV == nil {
		return nil
	}
	return a.closeKV()
}

// openKV opens the session persistence backend selected by PROPMAN_STORE
func openKV(ctx context.Context, cfg config.StorageConfig) (storage.KV, func() error, error) {
	noop := func() error { return nil }

	switch cfg.GetStoreKind() {
	case config.StoreMemory:
		return memstore.New(), noop, nil
	case config.StoreSQLite:
		s, err := sqlitestore.Open(ctx, cfg.GetStorePath())
		if err != nil {
			return nil, nil, fmt.Errorf("open session database: %w", err)
		}
		return s, s.Close, nil
	default:
		key, err := cfg.GetStoreKey()
		if err != nil {
			return nil, nil, err
		}
		fs, err := filestore.New(cfg.GetStorePath(), filestore.WithEncryptionKey(key))
		if err != nil {
			return nil, nil, fmt.Errorf("open session file: %w", err)
		}
		return fs, noop, nil
	}
}

// writeMetrics prints the collected metrics in the Prometheus text format
func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("registry.Gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("expfmt.MetricFamilyToText: %w", err)
		}
	}
	return nil
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
