package r2

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateKeyShape(t *testing.T) {
	key := GenerateKey("My Report.PDF", FolderUploads)
	if !strings.HasPrefix(key, "uploads/") {
		t.Fatalf("key missing folder prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("key missing lowercased extension: %s", key)
	}
	rest := strings.TrimPrefix(key, "uploads/")
	parts := strings.SplitN(strings.TrimSuffix(rest, ".pdf"), "-", 2)
	if len(parts) != 2 || len(parts[1]) != 6 {
		t.Fatalf("unexpected key shape: %s", key)
	}
}

func TestGenerateKeyNoExtension(t *testing.T) {
	key := GenerateKey("noext", FolderConverted)
	if !strings.HasPrefix(key, "converted/") || strings.Contains(key, ".") {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestGenerateKeyAvoidsCollisions(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		k := GenerateKey("a.pdf", FolderUploads)
		if seen[k] {
			t.Fatalf("duplicate key: %s", k)
		}
		seen[k] = true
	}
}

func TestBackoffDelayDoublesWithBoundedJitter(t *testing.T) {
	s := &Storage{RetryBaseDelay: 300 * time.Millisecond}

	for attempt := 1; attempt <= 3; attempt++ {
		base := s.RetryBaseDelay << (attempt - 1)
		jitter := base / 10
		lo, hi := base-jitter/2, base+jitter/2
		seen := make(map[time.Duration]bool)
		for i := 0; i < 50; i++ {
			d := s.backoffDelay(attempt)
			if d < lo || d > hi {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lo, hi)
			}
			seen[d] = true
		}
		if len(seen) < 2 {
			t.Fatalf("attempt %d: jitter produced no variation", attempt)
		}
	}
}

func TestFilenameFromKey(t *testing.T) {
	if got := FilenameFromKey("converted/1700000000-abc123.docx"); got != "1700000000-abc123.docx" {
		t.Fatalf("unexpected filename: %s", got)
	}
}
