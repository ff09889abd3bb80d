package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger
var traceLogger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	})
	logger.SetLevel(logrus.InfoLevel)

	traceLogger = logrus.New()
	traceLogger.SetOutput(os.Stderr)
	traceLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "trace_msg",
		},
	})
	traceLogger.SetLevel(logrus.WarnLevel)
}

func GetLogger() *logrus.Logger {
	return logger
}

// GetTraceLogger returns the logger used by the ptrace event loop.
// Kept separate so per-event logging can be turned up without drowning
// the main log.
func GetTraceLogger() *logrus.Logger {
	return traceLogger
}

func SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(logLevel)
	return nil
}

func SetTraceLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	traceLogger.SetLevel(logLevel)
	return nil
}
