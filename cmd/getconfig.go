package main

import (
	"fmt"

	"github.com/regfront/regfront/impl/cmdline"
	"github.com/regfront/regfront/impl/config"
)

// getCfg parses the command line and builds the global configuration from it. With
// '--config-file' the file is loaded first and the values given on the command line are
// merged over it, with defaults filling whatever neither one set. Without a file the parsed
// command line (defaults included) is the whole configuration.
//
// The sub-command ("serve" or "version") is returned. An empty command means the parser
// printed help.
func getCfg() (string, error) {
	fromCmdline, cfg, err := cmdline.Parse()
	if err != nil {
		return "", err
	}
	if !fromCmdline.ConfigFile {
		config.Set(cfg)
		return fromCmdline.Command, nil
	}
	if err := config.Load(cfg.ConfigFile); err != nil {
		return "", fmt.Errorf("loading %s: %w", cfg.ConfigFile, err)
	}
	config.Merge(fromCmdline, cfg)
	return fromCmdline.Command, nil
}
