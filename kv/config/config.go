package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Duration is a time.Duration which reads from a TOML string such as "30s".
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return errors.WithStack(err)
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	LogLevel string `toml:"log-level"`
	// Leave empty to log to stderr.
	LogFile string `toml:"log-file"`

	// Shard counts, each must be a power of two.
	LatchShards    int `toml:"latch-shards"`
	StoreShards    int `toml:"store-shards"`
	RegistryShards int `toml:"registry-shards"`

	// Degree of the btrees holding version chains and commit records.
	BTreeDegree int `toml:"btree-degree"`

	// Interval between background garbage collections, zero disables them.
	GCInterval Duration `toml:"gc-interval"`
	// When the commit log holds more records than this, a warning is logged on every gc.
	CommitLogLimit int `toml:"commit-log-limit"`
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func (c *Config) Validate() error {
	shards := []struct {
		name  string
		value int
	}{
		{"latch-shards", c.LatchShards},
		{"store-shards", c.StoreShards},
		{"registry-shards", c.RegistryShards},
	}
	for _, s := range shards {
		if !isPowerOfTwo(s.value) {
			return errors.Errorf("%s must be a power of two, got %d", s.name, s.value)
		}
	}

	if c.BTreeDegree < 2 {
		return errors.Errorf("btree-degree must be at least 2, got %d", c.BTreeDegree)
	}

	if c.GCInterval.Duration < 0 {
		return errors.New("gc-interval must not be negative")
	}

	if c.GCInterval.Duration > 0 && c.GCInterval.Duration < 10*time.Millisecond {
		log.Warn("gc-interval is very short, gc will compete with transactions for latches",
			zap.Duration("gc-interval", c.GCInterval.Duration))
	}

	return nil
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:       getLogLevel(),
		LatchShards:    256,
		StoreShards:    64,
		RegistryShards: 32,
		BTreeDegree:    32,
		GCInterval:     NewDuration(10 * time.Second),
		CommitLogLimit: 100000,
	}
}

func NewTestConfig() *Config {
	return &Config{
		LogLevel:       getLogLevel(),
		LatchShards:    16,
		StoreShards:    4,
		RegistryShards: 4,
		BTreeDegree:    4,
		CommitLogLimit: 1000,
	}
}

// LoadFile reads a TOML config file on top of the default config. A LOG_LEVEL environment variable wins over the
// file.
func LoadFile(path string) (*Config, error) {
	c := NewDefaultConfig()
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Annotatef(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		c.LogLevel = l
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Annotatef(err, "invalid config %s", path)
	}
	return c, nil
}
