package runner

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKillAllMatchingInvokesKillWithExecutablePath(t *testing.T) {
	j := NewProcessJanitor("terminal64.exe")

	var gotPattern string
	j.kill = func(_ context.Context, pattern string) error {
		gotPattern = pattern
		return nil
	}

	if err := j.KillAllMatching(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPattern != "terminal64.exe" {
		t.Fatalf("expected kill to be called with the janitor's executable path, got %q", gotPattern)
	}
}

func TestKillAllMatchingPropagatesKillError(t *testing.T) {
	j := NewProcessJanitor("terminal64.exe")
	boom := errors.New("boom")
	j.kill = func(context.Context, string) error { return boom }

	if err := j.KillAllMatching(context.Background(), time.Second); !errors.Is(err, boom) {
		t.Fatalf("expected the kill error to propagate, got %v", err)
	}
}

func TestNewProcessJanitorSetsExecutablePath(t *testing.T) {
	j := NewProcessJanitor("terminal64.exe")
	if j.ExecutablePath != "terminal64.exe" {
		t.Fatalf("expected ExecutablePath to be set from the constructor argument, got %q", j.ExecutablePath)
	}
	if j.kill == nil {
		t.Fatal("expected the constructor to install a default kill implementation")
	}
}
