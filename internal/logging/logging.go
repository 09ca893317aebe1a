// Package logging sets up per-operation log files. Each user-facing
// operation (folder creation, transfer, config update) writes a structured
// log under the project's local meta folder, named after the operation and
// its start time.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// MetaFolderName marks folders owned by the tool rather than by the
// experimenter's data.
const MetaFolderName = ".datashuttle_meta"

const timestampLayout = "20060102T150405"

// LogsDir returns the folder operation logs are written to.
func LogsDir(localPath string) string {
	return filepath.Join(localPath, MetaFolderName, "logs")
}

// NewOperationLogger opens a log file for one operation run and returns a
// logger writing to it. The closer flushes and closes the file; the logger
// must not be used after it.
func NewOperationLogger(localPath, operation string, clock clockwork.Clock) (*logrus.Logger, func(), error) {
	dir := LogsDir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log folder %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s_%s.log", operation, clock.Now().Format(timestampLayout))

	file, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(file)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)

	// Warnings and errors are also surfaced on the console; everything else
	// stays in the file.
	logger.AddHook(&consoleHook{out: os.Stderr})

	logger.WithField("operation", operation).Info("operation started")

	closer := func() {
		logger.WithField("operation", operation).Info("operation finished")
		_ = file.Close()
	}

	return logger, closer, nil
}

// consoleHook mirrors warning-and-above entries to a second writer.
type consoleHook struct {
	out io.Writer
}

func (h *consoleHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *consoleHook) Fire(entry *logrus.Entry) error {
	_, err := fmt.Fprintf(h.out, "%s: %s\n", entry.Level, entry.Message)
	return err
}

// Discard returns a logger that drops everything, for callers that have no
// project folder to log into yet.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}
