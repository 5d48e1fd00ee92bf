package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production gets JSON output at info level,
// everything else the human-readable development encoder.
func New(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// MaskURI hides the password part of a connection string before it is logged.
func MaskURI(uri string) string {
	schemeEnd := 0
	if i := strings.Index(uri, "://"); i >= 0 {
		schemeEnd = i + 3
	}
	at := strings.LastIndex(uri, "@")
	if at <= schemeEnd {
		return uri
	}
	creds := uri[schemeEnd:at]
	colon := strings.Index(creds, ":")
	if colon < 0 {
		return uri
	}
	return uri[:schemeEnd] + creds[:colon] + ":***" + uri[at:]
}
