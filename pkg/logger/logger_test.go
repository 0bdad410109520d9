package logger_test

import (
	"strings"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	for name, testcase := range map[string]struct {
		expected log.Lvl
		ok       bool
	}{
		"debug":   {log.DEBUG, true},
		"INFO":    {log.INFO, true},
		"":        {log.INFO, true},
		" warn ":  {log.WARN, true},
		"error":   {log.ERROR, true},
		"off":     {log.OFF, true},
		"verbose": {log.INFO, false},
	} {
		t.Run("it parses "+name, func(t *testing.T) {
			actual, ok := logger.ParseLevel(name)
			if actual != testcase.expected || ok != testcase.ok {
				t.Errorf(
					"unexpected level:\n===actual===\n%v, %v\n===expected===\n%v, %v",
					actual, ok, testcase.expected, testcase.ok,
				)
			}
		})
	}
}

func TestWithPrefix(t *testing.T) {
	t.Run("it writes to the same output with its own prefix", func(t *testing.T) {
		buf := new(strings.Builder)
		base := log.New("base")
		base.SetOutput(buf)
		base.SetLevel(log.INFO)

		testee := logger.WithPrefix(base, "dispatcher")
		testee.Info("hello")

		if base.Prefix() != "base" {
			t.Errorf("base logger is modified: %s", base.Prefix())
		}
		if !strings.Contains(buf.String(), "[dispatcher]") || !strings.Contains(buf.String(), "hello") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})
}
