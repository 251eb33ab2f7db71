// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"decred.org/kernelprov/aa"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

// Write writes the data in p to standard out and the log rotator.
func (logWriter) Write(p []byte) (n int, err error) {
	if logRotator == nil {
		return os.Stdout.Write(p)
	}
	os.Stdout.Write(p)
	return logRotator.Write(p) // not safe concurrent writes, so only one logWriter{} allowed!
}

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it write to the backend. When adding new subsystems,
// add them to the subsystemLoggers map.
var (
	// logRotator is one of the logging outputs. Use initLogRotator to set it.
	// It should be closed on application shutdown.
	logRotator *rotator.Rotator

	// package main's Logger.
	log = aa.Disabled

	// subsystemLoggers maps each subsystem identifier to its associated logger.
	// The loggers are disabled until initLoggers is called.
	subsystemLoggers = map[string]aa.Logger{
		"MAIN": aa.Disabled,
		"PROV": aa.Disabled,
		"DPLY": aa.Disabled,
		"DISP": aa.Disabled,
		"BNDL": aa.Disabled,
		"JRNL": aa.Disabled,
	}
)

// initLogRotator initializes the logging rotater to write logs to logFile and
// create roll files in the same directory. It must be called before the
// package-global log rotater variables are used.
func initLogRotator(logFile string, maxRolls int) error {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logRotator, err = rotator.New(logFile, 32*1024, false, maxRolls)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	return nil
}

// initLoggers parses the debug level string and creates the subsystem
// loggers. A subsystem named in debugLevel must exist.
func initLoggers(debugLevel string) error {
	lm, err := aa.NewLoggerMaker(logWriter{}, debugLevel)
	if err != nil {
		return err
	}
	for subsys := range lm.Levels {
		if _, ok := subsystemLoggers[subsys]; !ok {
			return fmt.Errorf("unknown logging subsystem %q", subsys)
		}
	}
	for subsys := range subsystemLoggers {
		subsystemLoggers[subsys] = lm.NewLogger(subsys)
	}
	log = subsystemLoggers["MAIN"]
	return nil
}

func closeLogRotator() {
	if logRotator != nil {
		logRotator.Close()
	}
}
