package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"audit-server/internal/config"
)

var _log = logrus.New()

// Init 按配置初始化全局日志：级别、格式，以及可选的滚动日志文件
func Init(cfg config.LogConfig, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // 天
			Compress:   true,
		}
		out = io.MultiWriter(out, rotator)
	}
	_log.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	_log.SetLevel(level)

	if cfg.Format == "json" {
		_log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		_log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// Log 返回全局日志 entry
func Log() *logrus.Entry {
	return logrus.NewEntry(_log)
}

// WithFields 带字段的日志 entry
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log().WithFields(fields)
}
