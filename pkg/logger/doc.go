// Package logger builds slog loggers with environment presets and
// context-aware attribute injection.
//
// The factory wraps the chosen handler in a decorator that pulls dynamic
// attributes (tenant id, request id, environment) out of the context on every
// log call, so individual call sites never have to thread those values
// through manually.
package logger
