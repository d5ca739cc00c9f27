package logger_test

import (
	"testing"

	"github.com/Goliworks/Quark/internal/logger"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logger.Level{
		"debug":   logger.DebugLevel,
		"INFO":    logger.InfoLevel,
		"warning": logger.WarnLevel,
		"error":   logger.ErrorLevel,
		"fatal":   logger.FatalLevel,
		"panic":   logger.PanicLevel,
		"bogus":   logger.InfoLevel,
		"":        logger.InfoLevel,
	}

	for in, want := range cases {
		if got := logger.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelStringRoundTrip(t *testing.T) {
	for _, l := range []logger.Level{logger.PanicLevel, logger.FatalLevel, logger.ErrorLevel, logger.WarnLevel, logger.InfoLevel, logger.DebugLevel} {
		if logger.ParseLevel(l.String()) != l {
			t.Errorf("round trip failed for %v", l)
		}
	}
}
