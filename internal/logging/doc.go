// Package logging builds the slog loggers used by the sketchbook binaries.
//
// The "text" format writes one colorized line per record:
//
//	15:04:05 INF exported conversation component=export format=json
//
// The "json" format uses slog.NewJSONHandler. Color output follows
// fatih/color, which disables itself when the writer is not a terminal or
// NO_COLOR is set.
package logging
