package logger

import (
	"os"
	"testing"
)

func TestInitializeDoesNotPanic(t *testing.T) {
	t.Parallel()
	Initialize(Options{Debug: true, JSON: true})
	Initialize(Options{Output: os.Stderr})
}

func TestLevelFunctionsDoNotPanic(t *testing.T) {
	Initialize(Options{Debug: true})

	Debug("debug msg")
	Debugf("debug %s", "fmt")
	Debugw("debug kv", "key", "val")
	Info("info msg")
	Infof("info %s", "fmt")
	Infow("info kv", "key", "val")
	Warn("warn msg")
	Warnf("warn %s", "fmt")
	Warnw("warn kv", "key", "val")
	Error("error msg")
	Errorf("error %s", "fmt")
	Errorw("error kv", "key", "val")
}
