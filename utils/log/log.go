package log

import (
	"os"
	"time"

	"github.com/Luismorlan/postmux/utils/dotenv"
	"github.com/Luismorlan/postmux/utils/flag"
	ddhook "github.com/bin3377/logrus-datadog-hook"
	"github.com/sirupsen/logrus"
)

const (
	datadogUSHost    = "http-intake.logs.datadoghq.com"
	apiKeyEnv        = "DD_API_KEY"
	syncFrequencySec = 30
	syncRetry        = 3
)

// global accessible logger
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// This init function is only for testing cases, where the entry point is not
// main function. Unit test will fail with nil pointer dereference if we don't
// init here.
func init() {
	InitLogger()
}

// InitLogger can be called again from main after flags are parsed so that the
// service field picks up the parsed value.
func InitLogger() {
	logger = logrus.New()

	if dotenv.IsProdEnv() && os.Getenv(apiKeyEnv) != "" {
		hook := ddhook.NewHook(
			datadogUSHost,
			os.Getenv(apiKeyEnv),
			syncFrequencySec*time.Second,
			syncRetry,
			logrus.InfoLevel,
			&logrus.JSONFormatter{},
			ddhook.Options{},
		)
		logger.Hooks.Add(hook)
	}

	// Also send log to stderr, without json formatter for better readability
	logger.SetOutput(os.Stderr)

	Log = logger.WithFields(
		logrus.Fields{"service": *flag.ServiceName, "is_development": !dotenv.IsProdEnv()},
	)
}

// SetLevel is used by binaries exposing a verbosity flag.
func SetLevel(level logrus.Level) {
	logger.SetLevel(level)
}
