// Package config holds the settings shared by every fitwalkctl command. They
// are unmarshalled from Viper, which merges defaults, an optional settings
// file, FITWALK_* environment variables and command line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"fitwalk/internal/ingest"
	"fitwalk/internal/model"
	"fitwalk/internal/storage"
)

const EnvPrefix = "FITWALK"

// StoreConfig selects the landscape backend.
type StoreConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
	// number of point lookups kept in the read cache; 0 disables it
	CacheSize int64 `mapstructure:"cache-size"`
}

type LandscapeConfig struct {
	Alphabet string `mapstructure:"alphabet"`
	Length   int    `mapstructure:"length"`
}

type WalkConfig struct {
	Workers       int  `mapstructure:"workers"`
	ProgressEvery int  `mapstructure:"progress-every"`
	KeepRounds    bool `mapstructure:"keep-rounds"`
}

type RecombineConfig struct {
	SampleSize int `mapstructure:"sample-size"`
	TopK       int `mapstructure:"top-k"`
}

type SurrogateConfig struct {
	TrainingSize   int  `mapstructure:"training"`
	TestingSize    int  `mapstructure:"testing"`
	RandomizeCodes bool `mapstructure:"randomize-codes"`
}

type ExperimentConfig struct {
	Times         int   `mapstructure:"times"`
	Seed          int64 `mapstructure:"seed"`
	ProgressEvery int   `mapstructure:"progress-every"`
}

type IngestConfig struct {
	Screened   string `mapstructure:"screened"`
	Fitted     string `mapstructure:"fitted"`
	Sheet      string `mapstructure:"sheet"`
	Precedence string `mapstructure:"precedence"`
	BatchSize  int    `mapstructure:"batch-size"`
}

type ReportConfig struct {
	Dir   string `mapstructure:"dir"`
	Chart bool   `mapstructure:"chart"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Landscape  LandscapeConfig  `mapstructure:"landscape"`
	Walk       WalkConfig       `mapstructure:"walk"`
	Recombine  RecombineConfig  `mapstructure:"recombine"`
	Surrogate  SurrogateConfig  `mapstructure:"surrogate"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Report     ReportConfig     `mapstructure:"report"`
	Log        LogConfig        `mapstructure:"log"`
}

// New returns a Viper instance carrying the defaults and environment binding.
// FITWALK_STORE_KIND overrides store.kind, and so on.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.kind", storage.DefaultStoreKind())
	v.SetDefault("store.path", "fitwalk.db")
	v.SetDefault("store.cache-size", 1<<16)
	v.SetDefault("landscape.alphabet", model.AminoAcids)
	v.SetDefault("landscape.length", 0)
	v.SetDefault("walk.workers", 1)
	v.SetDefault("walk.progress-every", 10000)
	v.SetDefault("walk.keep-rounds", true)
	v.SetDefault("recombine.sample-size", 100)
	v.SetDefault("recombine.top-k", 3)
	v.SetDefault("surrogate.training", 100)
	v.SetDefault("surrogate.testing", 100)
	v.SetDefault("surrogate.randomize-codes", false)
	v.SetDefault("experiment.times", 100)
	v.SetDefault("experiment.seed", 1)
	v.SetDefault("experiment.progress-every", 10)
	v.SetDefault("ingest.precedence", string(ingest.FittedWins))
	v.SetDefault("ingest.batch-size", ingest.DefaultBatchSize)
	v.SetDefault("report.dir", "runs")
	v.SetDefault("report.chart", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", false)
}

// Load reads the optional settings file at path into v and decodes the merged
// settings.
func Load(v *viper.Viper, path string) (Config, error) {
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := model.NewAlphabet(c.Landscape.Alphabet); err != nil {
		return fmt.Errorf("landscape.alphabet: %w", err)
	}
	if c.Landscape.Length < 0 {
		return fmt.Errorf("landscape.length must not be negative")
	}
	if c.Walk.Workers < 1 {
		return fmt.Errorf("walk.workers must be at least 1")
	}
	if c.Recombine.TopK < 1 {
		return fmt.Errorf("recombine.top-k must be at least 1")
	}
	if c.Experiment.Times < 1 {
		return fmt.Errorf("experiment.times must be at least 1")
	}
	if _, err := ingest.ParsePrecedence(c.Ingest.Precedence); err != nil {
		return fmt.Errorf("ingest.precedence: %w", err)
	}
	return nil
}

func (c Config) Alphabet() model.Alphabet {
	return model.MustAlphabet(c.Landscape.Alphabet)
}
