package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Dir     string
	File    string    // defaults to uptime.log
	Level   string    // debug, info, warn, error; defaults to info
	Console io.Writer // optional second sink, e.g. os.Stderr
}

// New writes JSON lines to a rotating file under o.Dir.

func New(o Options) (*zap.Logger, error) {
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return nil, err
	}
	if o.File == "" {
		o.File = "uptime.log"
	}
	lvl := zap.InfoLevel
	if o.Level != "" {
		if err := lvl.UnmarshalText([]byte(o.Level)); err != nil {
			return nil, err
		}
	}

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(o.Dir, o.File),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(cfg)

	core := zapcore.NewCore(enc, w, lvl)
	if o.Console != nil {
		core = zapcore.NewTee(core, zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(o.Console)), lvl))
	}
	return zap.New(core), nil
}
