package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/cratecheck/internal/checker"
	"github.com/hazz-dev/cratecheck/internal/display"
	"github.com/hazz-dev/cratecheck/internal/storage"
)

type mockStatusStore struct {
	checks []storage.Check
	err    error
}

func (m *mockStatusStore) AllLatest(_ context.Context) ([]storage.Check, error) {
	return m.checks, m.err
}

func TestExecuteStatus_EmptyDB(t *testing.T) {
	store := &mockStatusStore{checks: []storage.Check{}}
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := executeStatus(cmd, store, display.Plain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "No check history") {
		t.Errorf("expected 'No check history' message, got:\n%s", output)
	}
}

func TestExecuteStatus_WithChecks(t *testing.T) {
	checks := []storage.Check{
		{ID: 1, Name: "my-new-crate", Availability: checker.Available, StatusCode: 404, ResponseMs: 42, CheckedAt: time.Now()},
		{ID: 2, Name: "slow-crate", Availability: checker.Unknown, Error: "context deadline exceeded", CheckedAt: time.Now()},
	}
	store := &mockStatusStore{checks: checks}

	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := executeStatus(cmd, store, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"my-new-crate", "slow-crate", "Available", "404", "Unknown", "context deadline exceeded"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestExecuteStatus_StoreError(t *testing.T) {
	store := &mockStatusStore{err: errors.New("db locked")}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := executeStatus(cmd, store, nil)
	if err == nil || !strings.Contains(err.Error(), "db locked") {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
