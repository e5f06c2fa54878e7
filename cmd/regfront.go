package main

import (
	"fmt"
	"os"

	"github.com/regfront/regfront/cmd/subcmd"
	"github.com/regfront/regfront/impl/config"
	"github.com/regfront/regfront/impl/globals"

	log "github.com/sirupsen/logrus"
)

// set by the build
var (
	buildVer string
	buildDtm string
)

func main() {
	os.Exit(realMain())
}

// realMain returns the process exit code: zero when the command completes (including a dry
// run and a shutdown by signal), one on any error.
func realMain() int {
	command, err := getCfg()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing configuration: %s\n", err)
		return 1
	}
	globals.ConfigureLogging(config.Get().LogLevel)
	switch command {
	case "serve":
		err = subcmd.Serve(buildVer, buildDtm)
	case "version":
		fmt.Printf("regfront version: %s build date: %s\n", buildVer, buildDtm)
	}
	if err != nil {
		log.Error(err)
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return 1
	}
	return 0
}
