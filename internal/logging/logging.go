// Package logging wires btclog subsystem loggers for the binaries.
package logging

import (
	"fmt"
	"io"

	"github.com/btcsuite/btclog"
)

// Subsystem tags.
const (
	TagAddrgen = "AGEN"
	TagFFI     = "AFFI"
	TagCLI     = "JCLI"
)

// Subsystem pairs a log tag with the hook that installs its logger.
type Subsystem struct {
	Tag string
	Use func(btclog.Logger)
}

// Setup creates a backend writing to w and installs one logger per
// subsystem at the named level ("trace" through "critical", or "off").
//
// Parameters:
//   - w: Log destination
//   - level: btclog level name
//   - subsystems: Packages to wire
//
// Returns:
//   - The loggers keyed by tag
//   - An error if level is not a known level name
func Setup(w io.Writer, level string, subsystems ...Subsystem) (map[string]btclog.Logger, error) {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	backend := btclog.NewBackend(w)
	loggers := make(map[string]btclog.Logger, len(subsystems))
	for _, s := range subsystems {
		logger := backend.Logger(s.Tag)
		logger.SetLevel(lvl)
		if s.Use != nil {
			s.Use(logger)
		}
		loggers[s.Tag] = logger
	}
	return loggers, nil
}
