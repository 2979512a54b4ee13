// utils/logger.go
package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zapdesk/zapdesk/internal/config"
)

// Zlog defaults to a no-op logger so packages can log before InitLogger runs.
var Zlog = zap.NewNop()

func InitLogger(cfg *config.Config) func() {
	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}

	var lvl zapcore.Level
	_ = lvl.Set(logLevel)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if cfg.Environment == "development" {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(devCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	stdoutCore := zapcore.NewCore(
		enc,
		zapcore.AddSync(os.Stdout),
		lvl,
	)

	Zlog = zap.New(stdoutCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", cfg.ServiceName))

	return func() { _ = Zlog.Sync() }
}
