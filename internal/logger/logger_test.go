package logger

import (
	"testing"
)

func TestNew_JSON(t *testing.T) {
	log, err := New("info", "json")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}

	// Should not panic
	log.Info("test message")
}

func TestNew_Console(t *testing.T) {
	log, err := New("debug", "console")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestMust(t *testing.T) {
	// Should not panic
	log := Must("info", "console")
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}
