package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOptions selects the logger flavor.
type LogOptions struct {
	// Level is a zap level name; unparseable values fall back to info
	Level string
	// Format is "json" or "console"
	Format string
	// Development enables the development base config (stack traces on warn, caller info)
	Development bool
}

// NewLogger builds a zap logger from options.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	var zapCfg zap.Config
	if opts.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	switch opts.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if opts.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(opts.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	return zapCfg.Build()
}
