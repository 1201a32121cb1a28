package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/japaniel/yomiwake/internal/config"
	"github.com/japaniel/yomiwake/internal/logging"
	"github.com/japaniel/yomiwake/pkg/analyzer"
	"github.com/japaniel/yomiwake/pkg/db"
	"github.com/japaniel/yomiwake/pkg/kvstore"
	"github.com/japaniel/yomiwake/pkg/readerer"
	"github.com/japaniel/yomiwake/pkg/snapshot"
	"github.com/japaniel/yomiwake/pkg/wanikani"
)

// app carries flag values and the state built from them.
type app struct {
	configPath string
	envFile    string
	jsonOut    bool

	snapshot  string
	store     string
	sqlite    string
	redisURL  string
	cacheKey  string
	logLevel  string
	logFormat string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "yomiwake",
		Short:             "yomiwake - sort lessons by kanji reading familiarity",
		Version:           readerer.Version(),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Path to a TOML config file (default ./"+config.DefaultPath+" if present)")
	f.StringVar(&a.envFile, "env-file", "", "Path to a dotenv file (default ./.env if present)")
	f.BoolVar(&a.jsonOut, "json", false, "Print JSON instead of text")
	f.StringVar(&a.snapshot, "snapshot", "", "Read progress from a snapshot file instead of the API")
	f.StringVar(&a.store, "store", "", "Knowledge cache store: sqlite, redis or memory")
	f.StringVar(&a.sqlite, "sqlite", "", "SQLite database path")
	f.StringVar(&a.redisURL, "redis-url", "", "Redis URL")
	f.StringVar(&a.cacheKey, "cache-key", "", "Key of the knowledge record")
	f.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&a.logFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newLessonsCmd(a),
		newExplainCmd(a),
		newScanCmd(a),
		newCacheCmd(a),
		newExportCmd(a),
	)
	return root
}

// setup loads configuration, applies flags on top and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("snapshot", &cfg.Snapshot, a.snapshot)
	set("store", &cfg.Store.Driver, a.store)
	set("sqlite", &cfg.Store.SQLitePath, a.sqlite)
	set("redis-url", &cfg.Store.RedisURL, a.redisURL)
	set("cache-key", &cfg.Store.CacheKey, a.cacheKey)
	set("log-level", &cfg.Log.Level, a.logLevel)
	set("log-format", &cfg.Log.Format, a.logFormat)

	if err := cfg.ValidateStore(); err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// openStore connects the configured store. A connection failure is not
// fatal: it is logged and a nil store is returned, which leaves the knowledge
// cache in memory for this run.
func (a *app) openStore(ctx context.Context) (kvstore.Store, func()) {
	noop := func() {}
	sc := a.cfg.Store
	switch sc.Driver {
	case config.DriverMemory:
		return kvstore.NewMemory(), noop
	case config.DriverRedis:
		r, err := kvstore.OpenRedis(ctx, sc.RedisURL, sc.RedisPrefix)
		if err != nil {
			a.log.Warn().Err(err).Msg("redis unavailable, knowledge cache is in-memory only")
			return nil, noop
		}
		return r, func() { r.Close() }
	default:
		conn, err := db.Open(ctx, sc.SQLitePath)
		if err != nil {
			a.log.Warn().Err(err).Str("path", sc.SQLitePath).Msg("sqlite unavailable, knowledge cache is in-memory only")
			return nil, noop
		}
		s := db.NewKVStore(conn)
		return s, func() { s.Close() }
	}
}

func (a *app) apiClient() *wanikani.Client {
	return wanikani.New(a.cfg.WaniKani.Token,
		wanikani.WithBaseURL(a.cfg.WaniKani.BaseURL),
		wanikani.WithTimeout(a.cfg.WaniKani.Timeout),
		wanikani.WithLogger(a.log),
	)
}

func (a *app) provider() (analyzer.Provider, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if a.cfg.Snapshot != "" {
		return snapshot.Open(a.cfg.Snapshot)
	}
	return a.apiClient(), nil
}

// pipeline builds the analyzer. The returned func releases the store.
func (a *app) pipeline(ctx context.Context) (*analyzer.Analyzer, analyzer.Provider, func(), error) {
	p, err := a.provider()
	if err != nil {
		return nil, nil, nil, err
	}
	store, closeStore := a.openStore(ctx)
	an := analyzer.New(p, store, analyzer.Options{
		CacheKey: a.cfg.Store.CacheKey,
		Logger:   a.log,
	})
	return an, p, closeStore, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
