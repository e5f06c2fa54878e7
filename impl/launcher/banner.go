package launcher

import (
	"fmt"
	"time"

	"github.com/regfront/regfront/impl/config"
	"github.com/regfront/regfront/impl/globals"
)

const startupBanner = `----------------------------------------------------------------------
regfront: container registry front end
Started: %s
Starting on %s
Tls: %s
Backend: %s (data dir %s)
These host names will be considered local for any Kubernetes validation callbacks: %q
Validation callback configuration:
  By default all remote images are denied,
  and all local images present in the repository are allowed
  Prefixes explicitly allowed: %q
  Image names explicitly allowed: %q
  Local prefixes explicitly denied: %q
  Local images explicitly denied: %q
----------------------------------------------------------------------
`

// printBanner prints the bind address, host names and the admission policy, in that order
func (l *Launcher) printBanner(cfg config.RuntimeConfig) {
	p := cfg.Policy()
	fmt.Fprintf(l.Out, startupBanner, time.Now().Format(time.RFC3339), cfg.Addr(), globals.TlsMsg(cfg.Tls()),
		cfg.BackendAddr(), cfg.DataDir(), cfg.HostNames(),
		p.AllowPrefixes, p.AllowImages, p.DenyPrefixes, p.DenyImages)
}
