// Package history keeps the append-only selection and refine log for a run
// prefix. The log is a markdown table so it can be folded verbatim into the
// debate report and read by the consensus stage.
package history

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/megaplan/internal/artifact"
	"github.com/Iron-Ham/megaplan/internal/util"
)

// Entry kinds recorded in the log.
const (
	KindResolve = "resolve"
	KindRefine  = "refine"
)

const header = "# Selection & Refine History\n\n" +
	"| Timestamp | Type | Content |\n" +
	"|-----------|------|---------|\n"

const timestampLayout = "2006-01-02 15:04"

// Log appends timestamped rows to a run's history artifact.
type Log struct {
	store  *artifact.Store
	prefix string
	now    func() time.Time
}

// NewLog binds a Log to a store and run prefix.
func NewLog(store *artifact.Store, prefix string) *Log {
	return &Log{store: store, prefix: prefix, now: time.Now}
}

// Path returns the history artifact path.
func (l *Log) Path() string {
	return l.store.HistoryPath(l.prefix)
}

// Exists reports whether the log has been written before.
func (l *Log) Exists() bool {
	return l.store.Exists(l.Path())
}

// Append records one entry. The table header is written once, on first
// append; content is flattened to a single line so it fits a table cell.
func (l *Log) Append(kind, content string) error {
	path := l.Path()
	if !l.store.Exists(path) {
		if err := l.store.Write(path, header); err != nil {
			return fmt.Errorf("failed to initialize history log: %w", err)
		}
	}

	row := fmt.Sprintf("| %s | %s | %s |\n",
		l.now().Format(timestampLayout), kind, util.Flatten(content))
	if err := l.store.Append(path, row); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// Read returns the full log text, or "" when no entries have been recorded.
func (l *Log) Read() (string, error) {
	if !l.Exists() {
		return "", nil
	}
	return l.store.Read(l.Path())
}
