package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gaia-platform/gdev/pkg/config"
	"github.com/sirupsen/logrus"
)

// NewLogger returns a new logger writing human readable lines to stderr at the
// requested level. In debug mode every entry is also appended as json to
// development.log in the config dir.
func NewLogger(config *config.AppConfig, level string) *logrus.Entry {
	log := newTerminalLogger(os.Stderr, level)

	if config.Debug {
		file, err := os.OpenFile(filepath.Join(config.ConfigDir, "development.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			fmt.Println("unable to log to file")
			os.Exit(1)
		}
		// highly recommended: tail -f development.log | humanlog
		// https://github.com/aybabtme/humanlog
		log.AddHook(newFileHook(file))
		if log.Level < logrus.DebugLevel {
			log.SetLevel(logrus.DebugLevel)
		}
	}

	return log.WithFields(logrus.Fields{
		"debug":     config.Debug,
		"version":   config.Version,
		"commit":    config.Commit,
		"buildDate": config.BuildDate,
	})
}

func getLogLevel(level string) logrus.Level {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

func newTerminalLogger(out io.Writer, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(getLogLevel(level))
	log.Formatter = &logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
	}
	return log
}

// fileHook mirrors every entry into a file as json, whatever the terminal level is
type fileHook struct {
	out       io.Writer
	formatter logrus.Formatter
}

func newFileHook(out io.Writer) *fileHook {
	return &fileHook{out: out, formatter: &logrus.JSONFormatter{}}
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.out.Write(line)
	return err
}
