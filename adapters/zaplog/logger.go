package zaplog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/goliatone/go-bdpay/core"
	glog "github.com/goliatone/go-logger/glog"
	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 14
	dailyMaxAgeDays   = 14
)

type Options struct {
	Enabled    bool
	Level      core.LogLevel
	Channel    string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Writer overrides the channel sink when set.
	Writer io.Writer
}

// FromConfig maps the logging section of core.Config. The daily channel
// keeps two weeks of rotated files.
func FromConfig(cfg core.LoggingConfig) Options {
	opts := Options{
		Enabled: cfg.Enabled,
		Level:   cfg.Level,
		Channel: strings.ToLower(strings.TrimSpace(cfg.Channel)),
		File:    strings.TrimSpace(cfg.File),
	}
	if opts.Channel == core.LogChannelDaily {
		opts.MaxAgeDays = dailyMaxAgeDays
	}
	return opts
}

// Logger is a glog.Logger, glog.FieldsLogger and glog.LoggerProvider backed
// by a zap sugared logger writing logfmt.
type Logger struct {
	sugar  *zap.SugaredLogger
	closer io.Closer
}

func New(opts Options) (*Logger, error) {
	if !opts.Enabled {
		return &Logger{sugar: zap.NewNop().Sugar()}, nil
	}
	sink, closer, err := resolveSink(opts)
	if err != nil {
		return nil, err
	}
	encoder := zaplogfmt.NewEncoder(encoderConfig())
	zcore := zapcore.NewCore(encoder, sink, zapLevel(opts.Level))
	base := zap.New(zcore, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{sugar: base.Sugar(), closer: closer}, nil
}

func (l *Logger) Trace(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
func (l *Logger) Fatal(msg string, args ...any) { l.sugar.Fatalw(msg, args...) }

func (l *Logger) WithContext(context.Context) glog.Logger {
	return l
}

// WithFields returns a child logger carrying fields in key order.
func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return &Logger{sugar: l.sugar.With(args...), closer: l.closer}
}

// GetLogger returns a child logger tagged with name.
func (l *Logger) GetLogger(name string) glog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &Logger{sugar: l.sugar.Named(name), closer: l.closer}
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// Close flushes and releases the rotating file, if any.
func (l *Logger) Close() error {
	_ = l.sugar.Sync()
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func resolveSink(opts Options) (zapcore.WriteSyncer, io.Closer, error) {
	if opts.Writer != nil {
		return zapcore.AddSync(opts.Writer), nil, nil
	}
	switch opts.Channel {
	case "", core.LogChannelStdout:
		return zapcore.Lock(os.Stdout), nil, nil
	case core.LogChannelStderr:
		return zapcore.Lock(os.Stderr), nil, nil
	case core.LogChannelDaily, core.LogChannelFile:
		if opts.File == "" {
			return nil, nil, fmt.Errorf("zaplog: logging.file is required for channel %q", opts.Channel)
		}
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    positiveOr(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: positiveOr(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		return zapcore.AddSync(rotating), rotating, nil
	default:
		return nil, nil, fmt.Errorf("zaplog: unsupported logging channel %q", opts.Channel)
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

func zapLevel(level core.LogLevel) zapcore.Level {
	switch level.String() {
	case string(core.LogLevelDebug):
		return zapcore.DebugLevel
	case string(core.LogLevelWarn):
		return zapcore.WarnLevel
	case string(core.LogLevelError):
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Logger)(nil)
)
