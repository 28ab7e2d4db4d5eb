package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
)

func TestSaveAndOpenNestedKey(t *testing.T) {
	base := t.TempDir()
	store, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := store.Save(context.Background(), "evaluations/eval-1.json", strings.NewReader(`{"id":"eval-1"}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "evaluations", "eval-1.json")); err != nil {
		t.Fatalf("expected report on disk: %v", err)
	}

	rc, err := store.Open(context.Background(), "evaluations/eval-1.json")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"id":"eval-1"}` {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestSaveOverwritesExistingReport(t *testing.T) {
	store, _ := New(t.TempDir())
	ctx := context.Background()
	_ = store.Save(ctx, "evaluations/eval-1.json", strings.NewReader("first"))
	if err := store.Save(ctx, "evaluations/eval-1.json", strings.NewReader("second")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := store.Open(ctx, "evaluations/eval-1.json")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "second" {
		t.Fatalf("expected overwritten body, got %q", body)
	}
}

func TestOpenMissingKeyIsNotFound(t *testing.T) {
	store, _ := New(t.TempDir())
	_, err := store.Open(context.Background(), "evaluations/missing.json")
	if !domain.IsKind(err, domain.ErrEvaluationNotFound) {
		t.Fatalf("expected ErrEvaluationNotFound, got %v", err)
	}
}

func TestKeysCannotEscapeBasePath(t *testing.T) {
	store, _ := New(t.TempDir())
	for _, key := range []string{"../outside.json", "/etc/passwd", "", "evaluations/../../x"} {
		err := store.Save(context.Background(), key, strings.NewReader("x"))
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("key %q: expected ErrInvalidInput, got %v", key, err)
		}
	}
}
