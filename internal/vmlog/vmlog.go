// Package vmlog wires the logrus-based structured logger shared by every
// package in vmarmcore. It replaces the teacher's ad hoc VerboseMode +
// fmt.Fprintf(os.Stderr, ...) debug prints with structured fields, while
// keeping the same intent: cheap, opt-in verbosity with error/warn lines
// always surfaced.
package vmlog

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/xyproto/env/v2"
)

// Log is the process-wide logger. Level is set from VMARMCORE_LOG_LEVEL at
// package init time (see internal/vmconfig), defaulting to info.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	level, err := logrus.ParseLevel(env.Str("VMARMCORE_LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}

// With returns a logrus entry annotated with the given fields; callers
// should spread call sites like With("so_name", soName, "slot_id", id)
// rather than building logrus.Fields maps by hand.
func With(kv ...interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return Log.WithFields(fields)
}
