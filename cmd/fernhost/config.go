package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// defaultConfigFile is looked up in the working directory when --config is
// not given.
const defaultConfigFile = "fernhost.toml"

// duration parses TOML durations written as strings like "30s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// config mirrors fernhost.toml. Flags override anything set here.
type config struct {
	StorageDir   string   `toml:"storage_dir"`
	AllowedHosts []string `toml:"allowed_hosts"`
	Timeout      duration `toml:"timeout"`
	HTTPTimeout  duration `toml:"http_timeout"`
	HTTPMaxBody  int64    `toml:"http_max_body"`
	Memory       string   `toml:"memory"`
}

// loadConfig reads path, or the default file if path is empty. A missing
// default file is not an error; a missing explicit file is.
func loadConfig(path string) (config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	var cfg config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return config{}, nil
		}
		return config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("config %s: unknown key %s", path, undecoded[0])
	}
	return cfg, nil
}
