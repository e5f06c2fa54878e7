package globals

import (
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const msg = "echo server %s:%s status=%d latency=%s host=%s ip=%s"

// ConfigureLogging sets the logger level. If the REGFRONT_LOG environment variable is set,
// it overrides the passed level. If neither is set, only errors are logged.
func ConfigureLogging(level string) {
	if envLevel, ok := os.LookupEnv(LogEnvVar); ok && envLevel != "" {
		level = envLevel
	}
	if level == "" {
		level = DefaultLogLevel
	}
	log.SetLevel(xlatLogLevel(level))
	log.SetFormatter(&log.TextFormatter{})
}

// xlatLogLevel translates the passed 'level' string to a logger const. Unknown values
// fall back to the error level.
func xlatLogLevel(level string) log.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	case "TRACE":
		return log.TraceLevel
	}
	return log.ErrorLevel
}

// GetEchoLoggingFunc gets the registry server logging function
func GetEchoLoggingFunc() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			// don't log the health check because it clutters the log and it is intended to
			// be used by Kubernetes anyway so doesn't need to be logged
			if req.URL.Path == "/health" {
				return nil
			}

			flds := []interface{}{req.Method, req.RequestURI, res.Status, time.Since(start), req.Host, c.RealIP()}

			switch {
			case res.Status >= 500:
				log.Errorf(msg, flds...)
			case res.Status >= 400:
				log.Warnf(msg, flds...)
			default:
				log.Infof(msg, flds...)
			}
			return nil
		}
	}
}
