// Package logger provides the leveled, slog-backed logger used throughout
// cellarfs. Every component logs through the package-level Tracef/Debugf/
// Infof/Warnf/Errorf functions rather than holding its own *slog.Logger, so
// the active level and output format can be reconfigured once at startup
// from CLI flags.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Severity names accepted on the --log-severity flag and printed in text/JSON
// output.
const (
	SeverityTrace   = "TRACE"
	SeverityDebug   = "DEBUG"
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
	SeverityOff     = "OFF"
)

// slog has no native TRACE level; cellarfs treats it as one notch below
// DEBUG.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

type loggerFactory struct {
	level  *slog.LevelVar
	format string
	out    io.Writer
}

var defaultLoggerFactory = &loggerFactory{
	level:  levelVarFor(SeverityInfo),
	format: "text",
	out:    os.Stderr,
}

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.out, defaultLoggerFactory.level, ""))

func levelVarFor(severity string) *slog.LevelVar {
	lv := new(slog.LevelVar)
	setLoggingLevel(severity, lv)
	return lv
}

func setLoggingLevel(severity string, lv *slog.LevelVar) {
	switch severity {
	case SeverityTrace:
		lv.Set(LevelTrace)
	case SeverityDebug:
		lv.Set(LevelDebug)
	case SeverityInfo:
		lv.Set(LevelInfo)
	case SeverityWarning:
		lv.Set(LevelWarn)
	case SeverityError:
		lv.Set(LevelError)
	case SeverityOff:
		lv.Set(LevelOff)
	default:
		lv.Set(LevelInfo)
	}
}

// textHandler and jsonHandler implement slog.Handler directly rather than
// wrapping slog's own handlers, since the output shape (time="..."
// severity=LEVEL message="...", and {"timestamp":{"seconds":...,"nanos":...}
// ,"severity":"...","message":"..."}) predates slog's own formatting and
// must stay byte-compatible with existing log scrapers.
type textHandler struct {
	out    io.Writer
	level  slog.Leveler
	prefix string
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	sev := severityName(r.Level)
	_, err := fmt.Fprintf(h.out, "time=%q severity=%s message=%q\n", r.Time.Format("02/01/2006 15:04:05.000000"), sev, h.prefix+r.Message)
	return err
}

func (h *textHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *textHandler) WithGroup(_ string) slog.Handler      { return h }

type jsonTimestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

type jsonRecord struct {
	Timestamp jsonTimestamp `json:"timestamp"`
	Severity  string        `json:"severity"`
	Message   string        `json:"message"`
}

type jsonHandler struct {
	out    io.Writer
	level  slog.Leveler
	prefix string
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *jsonHandler) Handle(_ context.Context, r slog.Record) error {
	rec := jsonRecord{
		Timestamp: jsonTimestamp{Seconds: r.Time.Unix(), Nanos: int32(r.Time.Nanosecond())},
		Severity:  severityName(r.Level),
		Message:   h.prefix + r.Message,
	}
	enc := json.NewEncoder(h.out)
	return enc.Encode(rec)
}

func (h *jsonHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *jsonHandler) WithGroup(_ string) slog.Handler      { return h }

func severityName(level slog.Level) string {
	switch {
	case level < LevelDebug:
		return SeverityTrace
	case level < LevelInfo:
		return SeverityDebug
	case level < LevelWarn:
		return SeverityInfo
	case level < LevelError:
		return SeverityWarning
	default:
		return SeverityError
	}
}

func (f *loggerFactory) createJsonOrTextHandler(out io.Writer, level slog.Leveler, prefix string) slog.Handler {
	if f.format == "json" {
		return &jsonHandler{out: out, level: level, prefix: prefix}
	}
	return &textHandler{out: out, level: level, prefix: prefix}
}

// SetLogFormat switches the default logger between "text" and "json" output.
// An unrecognized format (including the empty string) falls back to "json",
// matching the historical default.
func SetLogFormat(format string) {
	if format != "text" {
		format = "json"
	}
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.out, defaultLoggerFactory.level, ""))
}

// SetLogLevel sets the minimum severity the default logger emits. The
// severity name is matched case-insensitively.
func SetLogLevel(severity string) {
	setLoggingLevel(strings.ToUpper(severity), defaultLoggerFactory.level)
}

func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }

func logf(level slog.Level, format string, args ...any) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}
