package logger

import (
	"github.com/facebookincubator/go-belt/tool/logger"
)

// Level is the verbosity of the converter's logging; it aliases the
// underlying logger's level so the CLI flag can be parsed by it
// directly.
type Level = logger.Level

const (
	// LevelUndefined is the zero value; it is never a valid verbosity.
	LevelUndefined = logger.LevelUndefined

	// LevelFatal reports Fatalf-s only.
	LevelFatal = logger.LevelFatal

	// LevelPanic adds Panicf-s.
	LevelPanic = logger.LevelPanic

	// LevelError adds Errorf-s; conversion failures land here.
	LevelError = logger.LevelError

	// LevelWarning adds Warningf-s; the default verbosity of the CLI.
	LevelWarning = logger.LevelWarning

	// LevelInfo adds Infof-s.
	LevelInfo = logger.LevelInfo

	// LevelDebug adds Debugf-s: session lifecycle and pump activity.
	LevelDebug = logger.LevelDebug

	// LevelTrace adds Tracef-s: per-frame and per-packet noise.
	LevelTrace = logger.LevelTrace
)
