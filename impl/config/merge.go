package config

// Merge takes a struct indicating which configuration options have been provided on the command
// line, as well as a configuration struct parsed from the command line which ALSO includes defaults
// that the user didn't specify. For example the default port is 8443 and if you don't specify
// that on the command line - it gets defaulted into the parsed configuration struct. So:
//
//  1. User provided a value: overwrite current config using the user's value
//  2. User did not provide a value, current config is unspecified: use the default in the parsed config
//  3. User did not provide a value, current config is specified: leave the current config untouched
//
// Policy lists and host names from the command line replace the lists from the file rather
// than being appended to them.
func Merge(fromCmdline FromCmdLine, cfg Configuration) {
	if fromCmdline.LogLevel || config.LogLevel == "" {
		config.LogLevel = cfg.LogLevel
	}
	if fromCmdline.ConfigFile || config.ConfigFile == "" {
		config.ConfigFile = cfg.ConfigFile
	}
	if fromCmdline.DataDir || config.DataDir == "" {
		config.DataDir = cfg.DataDir
	}
	if fromCmdline.Host || config.Host == "" {
		config.Host = cfg.Host
	}
	if fromCmdline.Port || config.Port == 0 {
		config.Port = cfg.Port
	}
	if fromCmdline.BackendHost || config.BackendHost == "" {
		config.BackendHost = cfg.BackendHost
	}
	if fromCmdline.BackendPort || config.BackendPort == 0 {
		config.BackendPort = cfg.BackendPort
	}
	if fromCmdline.HostNames || len(config.HostNames) == 0 {
		config.HostNames = cfg.HostNames
	}
	if fromCmdline.AllowPrefixes || len(config.Policy.AllowPrefixes) == 0 {
		config.Policy.AllowPrefixes = cfg.Policy.AllowPrefixes
	}
	if fromCmdline.AllowImages || len(config.Policy.AllowImages) == 0 {
		config.Policy.AllowImages = cfg.Policy.AllowImages
	}
	if fromCmdline.DenyPrefixes || len(config.Policy.DenyPrefixes) == 0 {
		config.Policy.DenyPrefixes = cfg.Policy.DenyPrefixes
	}
	if fromCmdline.DenyImages || len(config.Policy.DenyImages) == 0 {
		config.Policy.DenyImages = cfg.Policy.DenyImages
	}
	if fromCmdline.TlsCert || config.ServerTlsConfig.Cert == "" {
		config.ServerTlsConfig.Cert = cfg.ServerTlsConfig.Cert
	}
	if fromCmdline.TlsKey || config.ServerTlsConfig.Key == "" {
		config.ServerTlsConfig.Key = cfg.ServerTlsConfig.Key
	}
	if fromCmdline.Metrics || config.Metrics == 0 {
		config.Metrics = cfg.Metrics
	}
	if fromCmdline.DryRun || !config.DryRun {
		config.DryRun = cfg.DryRun
	}
}
