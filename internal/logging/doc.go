// Package logging builds the shared slog logger for the daemon and CLI.
//
// Two output formats are supported: a console handler that renders
// single-line key=value records with the component attribute promoted into
// the message prefix, and a JSON handler for machine consumption. Both
// honor the configured level and can fan output to stdout/stderr plus the
// daemon log file.
package logging
