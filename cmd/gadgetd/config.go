package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Config is the daemon's process bootstrap configuration: how this Go
// process starts, not what it exposes over the wire. It is distinct
// from settings.Settings (spec.md §3/§6), the client-observable
// key=value store persisted to flash — that shape must never change;
// this one is free to grow as the hosting process needs it to.
//
// Loaded from YAML (as doismellburning/samoyed, madpsy/ka9q_ubersdr
// and ka9q/kiwi_wspr all load their own process config) with pflag
// command-line overrides layered on top (as samoyed and kiwi_wspr do).
type Config struct {
	Port     string `yaml:"port"`
	Baud     int    `yaml:"baud"`
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
	// Backend selects the hardware seam: "auto" (real periph.io
	// hardware on linux, the in-memory dummy elsewhere), "real", or
	// "dummy" (force the dummy even on linux, e.g. bench-testing the
	// command plane with no CC1101s attached).
	Backend string `yaml:"backend"`
}

func defaultConfig() Config {
	return Config{
		Port:     "/dev/ttyGS0",
		Baud:     115200,
		DataDir:  "/data/gadget",
		LogLevel: "info",
		Backend:  "auto",
	}
}

// loadConfig reads the YAML file at path into a defaultConfig() base,
// so a file that only sets a few keys leaves the rest at their
// defaults. A missing file at the non-explicit default path is not an
// error; a missing file the caller named explicitly (via -c/--config)
// is.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("gadgetd: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("gadgetd: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// parseLogLevel falls back to info on an unrecognized level rather
// than failing startup over a typo in the log_level key.
func parseLogLevel(s string) log.Level {
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
