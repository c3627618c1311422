package sim

import (
	"log/slog"
)

// A LogHook is a hook that is responsible for recording information from the
// simulation
type LogHook interface {
	Hook
}

// LogHookBase provides the common logic for all LogHooks
type LogHookBase struct {
	*slog.Logger
}

// NewLogHookBase creates a LogHookBase that writes into the logger. If logger
// is nil, the default logger is used.
func NewLogHookBase(logger *slog.Logger) LogHookBase {
	if logger == nil {
		logger = slog.Default()
	}

	return LogHookBase{Logger: logger}
}
