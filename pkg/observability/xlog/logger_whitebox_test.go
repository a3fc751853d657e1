package xlog

import (
	"context"
	"errors"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestLogger_OnError(t *testing.T) {
	var got []error
	logger, _, err := New().
		SetOutput(failingWriter{}).
		SetOnError(func(err error) {
			got = append(got, err)
			panic("callback panics")
		}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	logger.Info(context.Background(), "lost")

	xl := logger.(*xlogger)
	if len(got) != 1 {
		t.Fatalf("onError calls = %d, want 1", len(got))
	}
	// 一次写入失败加一次回调 panic
	if n := xl.failures.Load(); n != 2 {
		t.Errorf("failures = %d, want 2", n)
	}
	if xl.reporting.Load() {
		t.Error("reporting flag not reset")
	}
}

func TestDefault_Fallback(t *testing.T) {
	old := newBuilder
	newBuilder = func() *Builder { return New().SetFormat("xml") }
	t.Cleanup(func() {
		newBuilder = old
		ResetDefault()
	})
	ResetDefault()

	if _, ok := Default().(*xlogger); !ok {
		t.Fatal("fallback logger is not *xlogger")
	}
}
