package entities

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTransitionFromActive(t *testing.T) {
	if err := Transition(StatusActive, StatusDeleted); err != nil {
		t.Fatalf("active -> deleted: %v", err)
	}
	if err := Transition(StatusActive, StatusFailed); err != nil {
		t.Fatalf("active -> failed: %v", err)
	}
}

func TestTerminalStatusesNeverLeave(t *testing.T) {
	for _, from := range []Status{StatusDeleted, StatusFailed} {
		for _, to := range []Status{StatusActive, StatusDeleted, StatusFailed} {
			err := Transition(from, to)
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("%s -> %s: expected ErrIllegalTransition, got %v", from, to, err)
			}
		}
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	if err := Transition(Status("pending"), StatusDeleted); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestNewArtifactIDShape(t *testing.T) {
	id := NewArtifactID()
	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 || len(parts[1]) != 6 {
		t.Fatalf("unexpected id shape: %s", id)
	}
	for _, r := range id {
		if r == '/' || r == '+' || r == '=' {
			t.Fatalf("id contains unsafe character: %s", id)
		}
	}
}

func TestNewArtifactIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewArtifactID()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	a := Artifact{ExpiresAt: now.Add(time.Minute)}
	if a.Expired(now) {
		t.Fatal("artifact with future expires_at reported expired")
	}
	a.ExpiresAt = now.Add(-time.Second)
	if !a.Expired(now) {
		t.Fatal("artifact past expires_at not reported expired")
	}
	a.ExpiresAt = now
	if !a.Expired(now) {
		t.Fatal("expires_at == now should count as expired")
	}
}
