package logging

import (
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/krisalay/query-cache/config"
)

const defaultLogMaxSize = 300 // MB

// New builds a zap logger from cfg. The returned AtomicLevel can be used to
// change the level at runtime.
func New(cfg config.Log, opts ...zap.Option) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, level, errors.Wrapf(err, "log level %q", cfg.Level)
	}

	output, err := writeSyncer(cfg.File)
	if err != nil {
		return nil, level, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, output, level)
	opts = append([]zap.Option{zap.AddCaller(), zap.ErrorOutput(output)}, opts...)
	return zap.New(core, opts...), level, nil
}

// writeSyncer returns stderr, or a rotating file when a filename is set.
func writeSyncer(cfg config.FileLog) (zapcore.WriteSyncer, error) {
	if cfg.Filename == "" {
		return zapcore.Lock(os.Stderr), nil
	}
	if st, err := os.Stat(cfg.Filename); err == nil && st.IsDir() {
		return nil, errors.Newf("can't use directory %s as log file name", cfg.Filename)
	}
	maxSize := cfg.MaxSize
	if maxSize == 0 {
		maxSize = defaultLogMaxSize
	}

	// use lumberjack to logrotate
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}), nil
}
