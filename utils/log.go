package utils

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogSubsys is the field name used to tag which component emitted a log line.
const LogSubsys = "subsys"

type LogOptions struct {
	// Level 是 logrus 能认识的级别, 比如 "debug", "info"
	Level string
	// Format 可以是 "text" 或者 "json"
	Format string
	// File 为空时只输出到 stderr
	File       string
	MaxSizeMB  int
	MaxBackups int
	Stderr     bool
}

var logger = logrus.New()

// Logger returns the process wide logger every package derives its entry from.
func Logger() *logrus.Logger {
	return logger
}

func InitLog(opts LogOptions) error {
	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
		level = l
	}
	logger.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("invalid log format %q", opts.Format)
	}

	writers := []io.Writer{}
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		})
	}
	if opts.Stderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}
	logger.SetOutput(io.MultiWriter(writers...))
	return nil
}
