package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/smartselect/shortlist/internal/core"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
	// FilePath enables a rotating JSON log file next to the console output.
	FilePath string
	// Console overrides the console destination (stderr when nil).
	Console io.Writer
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

func Init(opts ...LoggerOpts) {
	o := safe(opts...)

	console := o.Console
	if console == nil {
		console = os.Stderr
	}

	var out io.Writer
	if o.Environment.IsProduction() {
		out = console
	} else {
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	}

	if o.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   o.FilePath,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, rotator)
	}

	level := zerolog.DebugLevel
	if o.Environment.IsProduction() {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(out).With().Timestamp()
	if !o.Environment.IsProduction() {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger().Level(level)
}

// Disable silences all output; used by tests and by the CLI's --quiet flag.
func Disable() {
	log.Logger = zerolog.Nop()
}

func Trace() *zerolog.Event {
	return log.Trace()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
