// Package xlog is a small structured-logging facade over zerolog, carrying
// the four log tiers and error/warning counters used throughout the
// expectation engine and process supervisor.
package xlog

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Level mirrors the subset of syslog-style levels this harness actually
// reports: debug, info, warning, error. Finer-grained levels (notice,
// critical, emergency) have no caller in this package and are not exposed.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger wraps a zerolog.Logger, adding indentation and running
// error/warning counts so the process summary (spec §6) can be computed
// without a second traversal of the log.
type Logger struct {
	zl        zerolog.Logger
	indent    atomic.Int32
	errors    atomic.Uint64
	warnings  atomic.Uint64
	summaryZl *zerolog.Logger
}

const indentStep = "    "

// Option configures a Logger constructed by New.
type Option func(*config)

type config struct {
	consoleLevel Level
	fileLevel    *Level
	logFile      string
	summaryFile  string
}

// WithConsoleLevel sets the minimum level written to stderr. Default: Info.
func WithConsoleLevel(l Level) Option {
	return func(c *config) { c.consoleLevel = l }
}

// WithFileLevel enables file logging at the given level. The file is
// "run.log" unless WithLogFile is also given.
func WithFileLevel(l Level) Option {
	return func(c *config) { c.fileLevel = &l }
}

// WithLogFile overrides the log file path (default "run.log").
func WithLogFile(path string) Option {
	return func(c *config) { c.logFile = path }
}

// WithSummaryFile makes PrintSummary also write its one-line pass/fail
// summary to the given file. No other log output goes to that file.
func WithSummaryFile(path string) Option {
	return func(c *config) { c.summaryFile = path }
}

// New builds a Logger per the given options. With no options, it logs at
// Info level to stderr only (no file).
func New(opts ...Option) (*Logger, error) {
	cfg := config{consoleLevel: LevelInfo, logFile: "run.log"}
	for _, o := range opts {
		o(&cfg)
	}

	var writers []io.Writer
	console := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false, TimeFormat: "15:04:05"}
	writers = append(writers, levelFilter{w: console, min: cfg.consoleLevel})

	var summaryZl *zerolog.Logger
	if cfg.fileLevel != nil {
		f, err := os.Create(cfg.logFile)
		if err != nil {
			return nil, err
		}
		writers = append(writers, levelFilter{w: f, min: *cfg.fileLevel})
	}
	if cfg.summaryFile != "" {
		f, err := os.Create(cfg.summaryFile)
		if err != nil {
			return nil, err
		}
		sw := zerolog.New(f).With().Logger()
		summaryZl = &sw
	}

	multi := zerolog.MultiLevelWriter(writers...)
	zl := zerolog.New(multi).With().Timestamp().Logger().Level(zerolog.TraceLevel)

	return &Logger{zl: zl, summaryZl: summaryZl}, nil
}

type levelFilter struct {
	w   io.Writer
	min Level
}

func (f levelFilter) Write(p []byte) (int, error) {
	lvl, err := zerolog.ParseLevel(string(extractLevel(p)))
	if err == nil && lvl < f.min.zerolog() {
		return len(p), nil
	}
	return f.w.Write(p)
}

func extractLevel(p []byte) []byte {
	const key = `"level":"`
	i := bytes.Index(p, []byte(key))
	if i < 0 {
		return nil
	}
	start := i + len(key)
	end := bytes.IndexByte(p[start:], '"')
	if end < 0 {
		return nil
	}
	return p[start : start+end]
}

func (l *Logger) prefix() string {
	return strings.Repeat(indentStep, int(l.indent.Load()))
}

// Indent increases the indentation applied to subsequent messages, mirroring
// xmos_logging.log_indent, used while printing nested expectation state.
func (l *Logger) Indent() { l.indent.Add(1) }

// Unindent reverses Indent.
func (l *Logger) Unindent() {
	for {
		v := l.indent.Load()
		if v <= 0 {
			return
		}
		if l.indent.CompareAndSwap(v, v-1) {
			return
		}
	}
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(l.prefix() + msg) }

func (l *Logger) Info(msg string) { l.zl.Info().Msg(l.prefix() + msg) }

func (l *Logger) Warning(msg string) {
	l.warnings.Add(1)
	l.zl.Warn().Msg(l.prefix() + "WARNING: " + msg)
}

func (l *Logger) Error(msg string) {
	l.errors.Add(1)
	l.zl.Error().Msg(l.prefix() + "ERROR: " + msg)
}

// Errors returns the running error count.
func (l *Logger) Errors() uint64 { return l.errors.Load() }

// Warnings returns the running warning count.
func (l *Logger) Warnings() uint64 { return l.warnings.Load() }

// PrintSummary writes the exact spec §6 summary line to stdout (and to the
// summary file, if configured), then returns the process exit code: 0 if no
// errors were recorded, 1 otherwise.
func (l *Logger) PrintSummary(stdout io.Writer) int {
	errs, warns := l.errors.Load(), l.warnings.Load()
	var line string
	if errs == 0 && warns == 0 {
		line = "Test passed"
	} else {
		line = pluralLine(errs, warns)
	}
	_, _ = io.WriteString(stdout, line+"\n")
	if l.summaryZl != nil {
		l.summaryZl.Log().Msg(line)
	}
	if errs > 0 {
		return 1
	}
	return 0
}

func pluralLine(errs, warns uint64) string {
	errWord, warnWord := "ERROR", "WARNING"
	if errs != 1 {
		errWord = "ERRORS"
	}
	if warns != 1 {
		warnWord = "WARNINGS"
	}
	return strconv.FormatUint(errs, 10) + " " + errWord + " and " + strconv.FormatUint(warns, 10) + " " + warnWord + " detected"
}
