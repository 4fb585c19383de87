package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer os.Unsetenv("APP_ENV")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestNewReturnsLogger(t *testing.T) {
	assert.NotNil(t, New("component"))
}

func TestNopLogger(t *testing.T) {
	l := NopLogger{}
	l.Debugf("debug")
	l.Debugw("debug", nil)
	l.Infof("info")
	l.Warnf("warn")
	l.Errorf("error")
}
