package history

import (
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/megaplan/internal/artifact"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	store := artifact.NewStore(t.TempDir(), "")
	l := NewLog(store, "issue-42")
	l.now = func() time.Time {
		return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	}
	return l
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	l := newTestLog(t)

	if err := l.Append(KindResolve, "pick option B"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(KindRefine, "tighten scope"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	text, err := l.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got := strings.Count(text, "# Selection & Refine History"); got != 1 {
		t.Errorf("header appears %d times, want 1", got)
	}
	if got := strings.Count(text, "|-----------|"); got != 1 {
		t.Errorf("separator appears %d times, want 1", got)
	}
	if !strings.Contains(text, "| 2024-03-15 09:30 | resolve | pick option B |\n") {
		t.Errorf("missing resolve row:\n%s", text)
	}
	if !strings.Contains(text, "| 2024-03-15 09:30 | refine | tighten scope |\n") {
		t.Errorf("missing refine row:\n%s", text)
	}
}

func TestAppendFlattensContent(t *testing.T) {
	l := newTestLog(t)

	if err := l.Append(KindRefine, "multi\nline\tcontent"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	text, _ := l.Read()
	if !strings.Contains(text, "| refine | multi line content |") {
		t.Errorf("content not flattened:\n%s", text)
	}
}

func TestAppendOrderPreserved(t *testing.T) {
	l := newTestLog(t)

	for _, content := range []string{"first", "second", "third"} {
		if err := l.Append(KindResolve, content); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	text, _ := l.Read()
	first := strings.Index(text, "first")
	second := strings.Index(text, "second")
	third := strings.Index(text, "third")
	if !(first < second && second < third) {
		t.Errorf("rows out of order:\n%s", text)
	}
}

func TestReadEmptyLog(t *testing.T) {
	l := newTestLog(t)

	if l.Exists() {
		t.Error("fresh log should not exist")
	}
	text, err := l.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if text != "" {
		t.Errorf("Read = %q, want empty", text)
	}
}
