// Package logging provides structured logging for nativehost on top of
// log/slog.
//
// Configured from the logging section:
//
//	logging:
//	  level: info          # debug, info, warn, error
//	  format: json         # json, text
//	  output: stderr       # stderr, stdout, or a file path
//
// The desktop shell usually owns the host's stdio, so packaged builds log to
// a file. Attributes whose key ends in token, secret or password are
// replaced with [REDACTED]. Build output itself is only logged at debug.
package logging
