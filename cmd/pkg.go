/*
Regfront runs the front end of a container registry: it starts the storage backend, connects to
it over gRPC, and serves the registry API plus a Kubernetes image validation callback on HTTP or
HTTPS until it receives SIGINT or SIGTERM.

Usage:

	regfront [global flags] serve [flags]
	regfront version

Global flags:

	--log-level string
		Sets the minimum value for logging: debug, warn, info, or error. Defaults to 'error'.
		The REGFRONT_LOG environment variable overrides it.
	--config-file string
		A yaml file to load configuration values from. Command line values override file values.
	--data-dir string
		The directory the backend stores registry data in. Defaults to './data'.

Serve flags:

	--host string, --port int
		The interface and port to serve the registry API on. Defaults to 0.0.0.0:8443.
	--backend-host string, --backend-port int
		The interface and port the backend listens on. Defaults to 127.0.0.1:51000.
	--host-name string
		A host name this registry is known by. Repeat for more than one.
	--allow-prefix, --allow-image string
		Remote images admitted by the validation callback. Repeatable.
	--deny-prefix, --deny-image string
		Local images rejected by the validation callback. Repeatable.
	--tls-cert, --tls-key string
		Serve HTTPS with this certificate and key.
	--metrics int
		Serve Prometheus metrics on this port.
	--dry-run
		Print the startup banner and exit.
*/
package main
