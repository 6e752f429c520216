package swap

import (
	"fmt"

	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/build"
)

// Subsystem defines the subsystem name this package's logs are tagged with.
const Subsystem = "SWAP"

// log is the package-level logger. It performs no logging until UseLogger
// is called with a real backend.
var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger(Subsystem, nil))
}

// UseLogger sets the logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// PrefixLog wraps a logger so every line is prefixed with a short form of
// the swap id it concerns, letting a multi-swap process's log interleave
// without losing track of which swap a line belongs to.
type PrefixLog struct {
	// Logger is the underlying base logger.
	Logger btclog.Logger

	// ID identifies the target swap.
	ID ID
}

// Infof formats message according to format specifier and writes to log
// with LevelInfo.
func (s *PrefixLog) Infof(format string, params ...interface{}) {
	s.Logger.Infof(fmt.Sprintf("%v %s", s.ID.ShortString(), format), params...)
}

// Warnf formats message according to format specifier and writes to log
// with LevelWarn.
func (s *PrefixLog) Warnf(format string, params ...interface{}) {
	s.Logger.Warnf(fmt.Sprintf("%v %s", s.ID.ShortString(), format), params...)
}

// Errorf formats message according to format specifier and writes to log
// with LevelError.
func (s *PrefixLog) Errorf(format string, params ...interface{}) {
	s.Logger.Errorf(fmt.Sprintf("%v %s", s.ID.ShortString(), format), params...)
}

// Debugf formats message according to format specifier and writes to log
// with LevelDebug.
func (s *PrefixLog) Debugf(format string, params ...interface{}) {
	s.Logger.Debugf(fmt.Sprintf("%v %s", s.ID.ShortString(), format), params...)
}
