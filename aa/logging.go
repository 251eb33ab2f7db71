// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package aa

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/decred/slog"
)

// Every component constructor accepts a Logger. All logging should take place
// through the provided logger.
type Logger = slog.Logger

// Level is the logging verbosity.
type Level = slog.Level

// Level aliases so that callers do not need to import slog directly.
const (
	LevelTrace    = slog.LevelTrace
	LevelDebug    = slog.LevelDebug
	LevelInfo     = slog.LevelInfo
	LevelWarn     = slog.LevelWarn
	LevelError    = slog.LevelError
	LevelCritical = slog.LevelCritical
	LevelOff      = slog.LevelOff
)

// Disabled is a Logger that will never output anything.
var Disabled Logger = slog.Disabled

// LoggerMaker allows creation of new log subsystems with predefined levels.
type LoggerMaker struct {
	*slog.Backend
	DefaultLevel slog.Level
	Levels       map[string]slog.Level
}

// NewLoggerMaker parses the debug level string into a new *LoggerMaker. The
// debugLevel string can specify a single verbosity for all subsystems
// ("debug"), or a comma-separated list of subsystem=level pairs
// ("info,DPLY=trace,BNDL=debug"). A bare level in the list sets the default.
func NewLoggerMaker(writer io.Writer, debugLevel string) (*LoggerMaker, error) {
	lm := &LoggerMaker{
		Backend:      slog.NewBackend(writer),
		Levels:       make(map[string]slog.Level),
		DefaultLevel: slog.LevelInfo,
	}
	if debugLevel == "" {
		return lm, nil
	}
	for _, tok := range strings.Split(debugLevel, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		subsys, lvlStr, found := strings.Cut(tok, "=")
		if !found {
			lvl, ok := slog.LevelFromString(tok)
			if !ok {
				return nil, fmt.Errorf("unknown log level %q", tok)
			}
			lm.DefaultLevel = lvl
			continue
		}
		lvl, ok := slog.LevelFromString(lvlStr)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q for subsystem %s", lvlStr, subsys)
		}
		lm.Levels[subsys] = lvl
	}
	return lm, nil
}

// SetLevelsFromMap sets all logs for certain subsystems with the same name to
// the corresponding log level in the map. Levels already parsed from the
// debug level string take precedence.
func (lm *LoggerMaker) SetLevelsFromMap(lvls map[string]slog.Level) {
	for name, lvl := range lvls {
		if _, ok := lm.Levels[name]; ok {
			continue
		}
		lm.Levels[name] = lvl
	}
}

// SubLogger creates a Logger with a subsystem name "parent[name]", using any
// known log level for the parent subsystem, defaulting to the DefaultLevel if
// the parent does not have an explicitly set level.
func (lm *LoggerMaker) SubLogger(parent, name string) Logger {
	// Use the parent logger's log level, if set.
	level, ok := lm.Levels[parent]
	if !ok {
		level = lm.DefaultLevel
	}
	logger := lm.Backend.Logger(fmt.Sprintf("%s[%s]", parent, name))
	logger.SetLevel(level)
	return logger
}

// NewLogger creates a new Logger for the subsystem with the given name. If a
// level was parsed for the subsystem it is used, then any level given here,
// then the DefaultLevel.
func (lm *LoggerMaker) NewLogger(name string, level ...slog.Level) Logger {
	lvl, ok := lm.Levels[name]
	if !ok {
		lvl = lm.DefaultLevel
		if len(level) > 0 {
			lvl = level[0]
		}
	}
	logger := lm.Backend.Logger(name)
	logger.SetLevel(lvl)
	return logger
}

// StdOutLogger creates a Logger with the provided name with lvl as the log
// level and prints to standard out.
func StdOutLogger(name string, lvl slog.Level) Logger {
	logger := slog.NewBackend(os.Stdout).Logger(name)
	logger.SetLevel(lvl)
	return logger
}
