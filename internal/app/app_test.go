package app

import "testing"

func TestClose_PartiallyInitialized(t *testing.T) {
	a := &App{}
	if err := a.Close(); err != nil {
		t.Errorf("Close() on empty App = %v, want nil", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	otelCalls := 0
	dbCalls := 0
	a := &App{
		otelCleanup: func() { otelCalls++ },
		dbCleanup:   func() { dbCalls++ },
	}

	if err := a.Close(); err != nil {
		t.Fatalf("first Close() = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}

	if otelCalls != 1 {
		t.Errorf("otelCleanup called %d times, want 1", otelCalls)
	}
	if dbCalls != 1 {
		t.Errorf("dbCleanup called %d times, want 1", dbCalls)
	}
}
