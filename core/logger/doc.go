// Package logger builds the application's zap logger.
//
// Level accepts any zap level name; debug switches to the development preset with
// ISO8601 timestamps. Format is json or console.
//
// WithRayID tags a logger with the request's ray id so log lines of one request can
// be correlated:
//
//	l := logger.WithRayID(log, c)
//	l.Error("Handler failed", zap.Error(err))
package logger
