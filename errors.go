package corehost

import (
	"fmt"
	"log/slog"
)

// ErrorHandler is notified of engine errors that cannot be reported
// synchronously to the caller that triggered them (see spec §7's
// propagation policy: the audio thread never reports errors synchronously).
type ErrorHandler interface {
	HandleError(error)
}

// DefaultErrorHandler writes errors to the standard logger.
type DefaultErrorHandler struct{}

func (h *DefaultErrorHandler) HandleError(err error) {
	slog.Error("engine error", "err", err)
}

// LoggingErrorHandler wraps another handler and logs every error through
// logger before forwarding.
type LoggingErrorHandler struct {
	underlying ErrorHandler
	logger     *slog.Logger
}

// NewLoggingErrorHandler creates a handler that logs to logger (or the
// default slog logger, if nil) and then forwards to underlying.
func NewLoggingErrorHandler(underlying ErrorHandler, logger *slog.Logger) *LoggingErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingErrorHandler{underlying: underlying, logger: logger}
}

func (h *LoggingErrorHandler) HandleError(err error) {
	h.logger.Error("engine error", "err", err)
	if h.underlying != nil {
		h.underlying.HandleError(err)
	}
}

// PanicErrorHandler panics on any error. Useful in tests that want to
// fail loudly on the first unexpected engine error.
type PanicErrorHandler struct{}

func (h *PanicErrorHandler) HandleError(err error) {
	panic(fmt.Sprintf("engine error: %v", err))
}
