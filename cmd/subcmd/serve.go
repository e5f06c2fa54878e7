package subcmd

import (
	"context"
	"fmt"

	"github.com/regfront/regfront/impl/config"
	"github.com/regfront/regfront/impl/launcher"
	"github.com/regfront/regfront/impl/metrics"

	log "github.com/sirupsen/logrus"
)

// Serve runs the registry front end from the global configuration, blocking until the server
// is stopped with CTRL-C or SIGTERM. A dry run returns nil right after the startup banner.
func Serve(buildVer string, buildDtm string) error {
	cfg := config.Get()
	b, err := cfg.Builder()
	if err != nil {
		return fmt.Errorf("error in the configuration: %w", err)
	}
	log.Infof("regfront version %s, build date %s", buildVer, buildDtm)
	if cfg.Metrics != 0 && !cfg.DryRun {
		metrics.InitMetrics(cfg.Metrics)
	}
	return launcher.Start(context.Background(), b)
}
