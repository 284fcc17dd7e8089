package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"fitwalk/internal/config"
	"fitwalk/internal/logging"
	"fitwalk/pkg/fitwalk"
)

// rootBindings maps persistent flags onto settings keys.
var rootBindings = map[string]string{
	"store.kind":         "store",
	"store.path":         "db-path",
	"store.cache-size":   "cache-size",
	"landscape.alphabet": "alphabet",
	"landscape.length":   "length",
	"report.dir":         "runs-dir",
	"log.level":          "log-level",
	"log.dev":            "log-dev",
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fitwalkctl",
		Short: "Explore protein fitness landscapes with adaptive walks, recombination and surrogate models",
		Long: `fitwalkctl loads an empirical fitness landscape into a local store and runs
search strategies over it:

  ingest     load screened and fitted variant tables
  walk       run one adaptive walk
  sweep      walk from every variant and classify the endpoints
  peaks      list the local peaks of a stored sweep
  runs       list recorded runs; runs show prints one
  recombine  repeat sample-and-recombine searches
  surrogate  repeat linear surrogate model searches
  curve      mean peak fitness against sample size`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "settings file (yaml, json or toml)")
	flags.String("store", "", "store backend: memory|badger|sqlite")
	flags.String("db-path", "", "badger directory or sqlite database file")
	flags.Int64("cache-size", 0, "lookup cache entries, 0 disables")
	flags.String("alphabet", "", "ordered symbol alphabet")
	flags.Int("length", 0, "sequence length, 0 infers it")
	flags.String("runs-dir", "", "directory for run artifacts")
	flags.String("log-level", "", "debug|info|warn|error")
	flags.Bool("log-dev", false, "console log encoding")

	root.AddCommand(
		newIngestCmd(),
		newWalkCmd(),
		newSweepCmd(),
		newPeaksCmd(),
		newRunsCmd(),
		newRecombineCmd(),
		newSurrogateCmd(),
		newCurveCmd(),
	)
	return root
}

// loadConfig merges defaults, the settings file, the environment and the
// flags that were set on this invocation.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (config.Config, error) {
	v := config.New()
	bind := func(fs *pflag.FlagSet, key, name string) error {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("unknown flag %s", name)
		}
		if !flag.Changed {
			return nil
		}
		return v.BindPFlag(key, flag)
	}
	for key, name := range rootBindings {
		if err := bind(cmd.Flags(), key, name); err != nil {
			return config.Config{}, err
		}
	}
	for key, name := range bindings {
		if err := bind(cmd.Flags(), key, name); err != nil {
			return config.Config{}, err
		}
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(v, path)
}

type session struct {
	cfg    config.Config
	logger *zap.Logger
	client *fitwalk.Client
}

func openSession(cmd *cobra.Command, bindings map[string]string) (*session, error) {
	cfg, err := loadConfig(cmd, bindings)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		return nil, err
	}
	client, err := fitwalk.New(fitwalk.Options{
		StoreKind: cfg.Store.Kind,
		DBPath:    cfg.Store.Path,
		CacheSize: cfg.Store.CacheSize,
		RunsDir:   cfg.Report.Dir,
		Alphabet:  cfg.Landscape.Alphabet,
		Length:    cfg.Landscape.Length,
		Logger:    logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, client: client}, nil
}

// Close releases the store. Sync fails on terminals, so its error is dropped.
func (s *session) Close() error {
	err := s.client.Close()
	_ = s.logger.Sync()
	return err
}

// closeInto closes c and joins its error into *err.
func closeInto(c io.Closer, err *error) {
	*err = errors.Join(*err, c.Close())
}
