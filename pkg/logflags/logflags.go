// Package logflags configures the per-component loggers used by the debug
// stub and parses the --log/--log-output command line flags.
package logflags

import (
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"
)

var target = false
var events = false
var memory = false

// Target returns true if the process controller should log its lifecycle
// operations.
func Target() bool {
	return target
}

// TargetLogger returns a logger for the process controller.
func TargetLogger() Logger {
	return makeLogger(target, Fields{"layer": "target"})
}

// Events returns true if the debug-event loop should log every native event
// it consumes.
func Events() bool {
	return events
}

// EventsLogger returns a logger for the debug-event loop.
func EventsLogger() Logger {
	return makeLogger(events, Fields{"layer": "target", "kind": "events"})
}

// Memory returns true if target memory accesses should be logged.
func Memory() bool {
	return memory
}

// MemoryLogger returns a logger for the memory access subsystem.
func MemoryLogger() Logger {
	return makeLogger(memory, Fields{"layer": "target", "kind": "memory"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets component logging flags based on the contents of logstr and
// redirects logging output to dest if it is not empty.
func Setup(logFlag bool, logstr, dest string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if dest != "" {
		f, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("could not create log output file %q: %v", dest, err)
		}
		logOut = f
	}
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "target"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "target":
			target = true
		case "events":
			events = true
		case "memory":
			memory = true
		default:
			return fmt.Errorf("invalid log output value %q", logcmd)
		}
	}
	return nil
}

// Close closes the file --log-output is being redirected to, if any.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}
