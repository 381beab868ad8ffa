// Package logger builds the process logger and masks personal data in log fields.
package logger

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/account-keeper/internal/errs"
)

// New returns a JSON production logger for env "production" and a colored
// development logger otherwise.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env != "production" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}

var emailRe = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail keeps up to three leading characters and the domain:
// john.doe@example.com -> joh***@example.com.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	if m := emailRe.FindStringSubmatch(email); len(m) == 3 {
		return m[1] + "***" + m[2]
	}
	if _, domain, ok := strings.Cut(email, "@"); ok {
		return "***@" + domain
	}
	return "***"
}

// Level picks the level an error of the given severity is logged at.
func Level(sev errs.Severity) zapcore.Level {
	switch sev {
	case errs.SeverityCritical, errs.SeverityHigh:
		return zapcore.ErrorLevel
	case errs.SeverityMedium:
		return zapcore.WarnLevel
	case errs.SeverityLow:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Error logs err at the level its severity calls for. The internal cause is logged
// only for critical and high severities.
func Error(log *zap.Logger, msg string, err error, fields ...zap.Field) {
	ae := errs.Classify(err)
	lvl := Level(ae.Severity())
	fields = append(fields,
		zap.String("code", ae.Code()),
		zap.String("kind", ae.Kind().String()),
		zap.Stringer("layer", ae.Layer()),
		zap.Stringer("severity", ae.Severity()),
	)
	if lvl >= zapcore.ErrorLevel {
		fields = append(fields, zap.Error(err))
		if cause := ae.Unwrap(); cause != nil {
			fields = append(fields, zap.NamedError("cause", cause))
		}
	}
	if ce := log.Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}
