package cmdline

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/regfront/regfront/impl/config"

	"github.com/urfave/cli/v3"
)

// fromCmdline will be populated with flags indicating which configuration settings were
// specified on the command line.
var fromCmdline config.FromCmdLine

// cfg has the parsed configuration - including defaults (e.g. port) if the user does not override
var cfg = config.Configuration{}

// newCmds builds the command tree for the command line parser urfave/cli. The tree is built
// fresh for every parse because the parser keeps per-flag state after a run.
func newCmds() *cli.Command {
	return &cli.Command{
		Name:  "regfront",
		Usage: "a container registry front end with a Kubernetes image admission callback",
		// define this or the parser terminates the program
		ExitErrHandler: func(_ context.Context, _ *cli.Command, _ error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Value:       "error",
				Usage:       "Sets the minimum value for logging: debug, warn, info, or error",
				Destination: &cfg.LogLevel,
				Validator: func(lvl string) error {
					validValues := []string{"debug", "warn", "info", "error"}
					if !slices.Contains(validValues, strings.ToLower(lvl)) {
						return fmt.Errorf("must be one of %s", strings.Join(validValues, ", "))
					}
					return nil
				},
				Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
					fromCmdline.LogLevel = true
					return nil
				},
			},
			&cli.StringFlag{
				Name:        "config-file",
				Usage:       "A file to load configuration values from (cmdline overrides file settings)",
				Destination: &cfg.ConfigFile,
				Validator:   isFile,
				Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
					fromCmdline.ConfigFile = true
					return nil
				},
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Value:       "./data",
				Usage:       "The directory the backend stores registry data in",
				Destination: &cfg.DataDir,
				Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
					fromCmdline.DataDir = true
					return nil
				},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Runs the server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fromCmdline.Command = "serve"
					return nil
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "host",
						Value:       "0.0.0.0",
						Usage:       "The interface to serve the registry API on",
						Destination: &cfg.Host,
						Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
							fromCmdline.Host = true
							return nil
						},
					},
					&cli.IntFlag{
						Name:        "port",
						Value:       8443,
						Usage:       "The port to serve the registry API on",
						Destination: &cfg.Port,
						Validator:   isPort,
						Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
							fromCmdline.Port = true
							return nil
						},
					},
					&cli.StringFlag{
						Name:        "backend-host",
						Value:       "127.0.0.1",
						Usage:       "The interface the backend listens on",
						Destination: &cfg.BackendHost,
						Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
							fromCmdline.BackendHost = true
							return nil
						},
					},
					&cli.IntFlag{
						Name:        "backend-port",
						Value:       51000,
						Usage:       "The port the backend listens on",
						Destination: &cfg.BackendPort,
						Validator:   isPort,
						Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
							fromCmdline.BackendPort = true
							return nil
						},
					},
					&cli.StringSliceFlag{
						Name:        "host-name",
						Usage:       "A host name this registry is known by (repeatable). Images on these hosts are local",
						Destination: &cfg.HostNames,
						Action: func(ctx context.Context, cmd *cli.Command, _ []string) error {
							fromCmdline.HostNames = true
							return nil
						},
					},
					&cli.StringSliceFlag{
						Name:        "allow-prefix",
						Usage:       "Allow remote images starting with this prefix, e.g. 'docker.io/library/' (repeatable)",
						Destination: &cfg.Policy.AllowPrefixes,
						Action: func(ctx context.Context, cmd *cli.Command, _ []string) error {
							fromCmdline.AllowPrefixes = true
							return nil
						},
					},
					&cli.StringSliceFlag{
						Name:        "allow-image",
						Usage:       "Allow this remote image, e.g. 'quay.io/coreos/etcd:v3.5.0' (repeatable)",
						Destination: &cfg.Policy.AllowImages,
						Action: func(ctx context.Context, cmd *cli.Command, _ []string) error {
							fromCmdline.AllowImages = true
							return nil
						},
					},
					&cli.StringSliceFlag{
						Name:        "deny-prefix",
						Usage:       "Deny local images starting with this prefix (repeatable)",
						Destination: &cfg.Policy.DenyPrefixes,
						Action: func(ctx context.Context, cmd *cli.Command, _ []string) error {
							fromCmdline.DenyPrefixes = true
							return nil
						},
					},
					&cli.StringSliceFlag{
						Name:        "deny-image",
						Usage:       "Deny this local image, e.g. 'myorg/app:bad' (repeatable)",
						Destination: &cfg.Policy.DenyImages,
						Action: func(ctx context.Context, cmd *cli.Command, _ []string) error {
							fromCmdline.DenyImages = true
							return nil
						},
					},
					&cli.StringFlag{
						Name:        "tls-cert",
						Usage:       "The server certificate, serves HTTPS when given along with --tls-key",
						Destination: &cfg.ServerTlsConfig.Cert,
						Validator:   isFile,
						Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
							fromCmdline.TlsCert = true
							return nil
						},
					},
					&cli.StringFlag{
						Name:        "tls-key",
						Usage:       "The server key, serves HTTPS when given along with --tls-cert",
						Destination: &cfg.ServerTlsConfig.Key,
						Validator:   isFile,
						Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
							fromCmdline.TlsKey = true
							return nil
						},
					},
					&cli.IntFlag{
						Name:        "metrics",
						Value:       0,
						Usage:       "Serves Prometheus metrics on this port. Zero disables metrics",
						Destination: &cfg.Metrics,
						Validator:   isPort,
						Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
							fromCmdline.Metrics = true
							return nil
						},
					},
					&cli.BoolFlag{
						Name:        "dry-run",
						Value:       false,
						Usage:       "Prints the startup banner and exits without serving",
						Destination: &cfg.DryRun,
						Action: func(ctx context.Context, cmd *cli.Command, _ bool) error {
							fromCmdline.DryRun = true
							return nil
						},
					},
				},
			},
			{
				Name:  "version",
				Usage: "Displays the version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fromCmdline.Command = "version"
					return nil
				},
			},
		},
	}
}

func isFile(path string) error {
	if fi, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found")
	} else if fi.IsDir() {
		return fmt.Errorf("not a file")
	}
	return nil
}

func isPort(port int64) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("must be between 0 and 65535")
	}
	return nil
}

// Parse parses the command line. It returns the following:
//
//  1. A FromCmdLine struct which has the command to run ("serve" or "version"). If the command
//     is the empty string then no sub-command was specified in which case the parser auto-displays
//     help. This struct also has flags telling you which configuration values were provided by the
//     user on the command line.
//  2. A Configuration struct containing the parsed configuration values. For any configuration flag
//     in the FromCmdLine struct with a false value, the corresponding configuration value in *this*
//     struct will be the default.
//  3. An error, if the parser returned one, else nil.
func Parse() (config.FromCmdLine, config.Configuration, error) {
	if err := newCmds().Run(context.Background(), os.Args); err != nil {
		return config.FromCmdLine{}, config.Configuration{}, err
	}
	return fromCmdline, cfg, nil
}

// ClearParse supports unit testing
func ClearParse() {
	fromCmdline = config.FromCmdLine{}
	cfg = config.Configuration{}
}
