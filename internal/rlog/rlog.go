// Package rlog provides the structured logger shared by every operation:
// a package-level *logrus.Logger in text-formatter mode, with a small
// helper for attaching the contextual fields ops care about (repo, op,
// ref).
package rlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. Commands configure its level and
// output; operations log through it (or through an Entry built by For).
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetDebug raises or lowers the logger's verbosity; the CLI's --verbose
// flag calls this once at startup.
func SetDebug(debug bool) {
	if debug {
		Logger.SetLevel(logrus.DebugLevel)
		return
	}
	Logger.SetLevel(logrus.InfoLevel)
}

// For returns an Entry carrying the named operation and the repository
// path it runs against, for operations to add further fields to
// (ref, hash counts, and so on) before logging.
func For(op, repoPath string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"op":   op,
		"repo": repoPath,
	})
}

// WithRef extends an Entry with the ref name an operation is acting on.
func WithRef(entry *logrus.Entry, ref string) *logrus.Entry {
	return entry.WithField("ref", ref)
}
