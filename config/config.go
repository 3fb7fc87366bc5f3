package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/ledgerpool/core/pool"
	"github.com/vadiminshakov/ledgerpool/core/request"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Listen is the address the pool gateway is served on.
	Listen string `yaml:"listen"`
	// Pool is the pool the gateway submits to.
	Pool string `yaml:"pool"`
	// Timeout is the consensus deadline of a request, ms.
	Timeout        uint64                 `yaml:"timeout"`
	WalDir         string                 `yaml:"wal_dir"`
	DBPath         string                 `yaml:"db_path"`
	Whitelist      []string               `yaml:"whitelist"`
	Roles          request.Roles          `yaml:"roles"`
	MaxRequestSize int                    `yaml:"max_request_size"`
	Pools          map[string][]pool.Node `yaml:"pools"`
	// CheckDID is read from the pool at startup when set.
	CheckDID string `yaml:"check_did"`
}

// Default returns the configuration used for anything a file leaves out.
func Default() *Config {
	return &Config{
		Listen:  "localhost:9700",
		Timeout: 5000,
		Roles:   request.DefaultRoles(),
		Pools:   map[string][]pool.Node{},
	}
}

// Load reads a yaml configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	conf := Default()
	// a roles table in the file replaces the built-in one
	conf.Roles = nil
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if len(conf.Roles) == 0 {
		conf.Roles = request.DefaultRoles()
	}

	return conf, conf.Validate()
}

// Validate checks that the configuration can be served.
func (c *Config) Validate() error {
	if c.Timeout == 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRequestSize < 0 {
		return errors.Errorf("invalid max_request_size %d", c.MaxRequestSize)
	}
	if (c.WalDir == "") != (c.DBPath == "") {
		return errors.New("wal_dir and db_path must be set together")
	}
	if c.Pool != "" {
		if _, ok := c.Pools[c.Pool]; !ok {
			return errors.Errorf("pool %s is not configured", c.Pool)
		}
	}
	return nil
}

// JournalEnabled reports whether requests are journaled.
func (c *Config) JournalEnabled() bool {
	return c.WalDir != "" && c.DBPath != ""
}

// TimeoutDuration returns Timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// Get creates configuration from yaml configuration file (if '-config=' flag specified) or command-line arguments.
func Get() (*Config, error) {
	path := flag.String("config", "", "path to yaml configuration file")
	listen := flag.String("listen", "", "gateway address")
	poolName := flag.String("pool", "", "pool to serve")
	timeout := flag.Uint64("timeout", 0, "ms, consensus deadline of a request")
	whitelist := flag.String("whitelist", "", "allowed hosts")
	flag.Parse()

	conf := Default()
	if *path != "" {
		var err error
		if conf, err = Load(*path); err != nil {
			return nil, err
		}
	}

	if *listen != "" {
		conf.Listen = *listen
	}
	if *poolName != "" {
		conf.Pool = *poolName
	}
	if *timeout != 0 {
		conf.Timeout = *timeout
	}
	if *whitelist != "" {
		conf.Whitelist = strings.Split(*whitelist, ",")
	}

	return conf, conf.Validate()
}
