// Package audit implements the terminal proxy's append-only input audit
// stream (§4.8 "Audit log").
package audit

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Entry is one audited client→upstream terminal frame. Upstream→client
// frames are never recorded (§4.8: "binary and verbose").
type Entry struct {
	Event     string    `json:"event"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// Logger appends newline-delimited JSON entries to an underlying writer,
// serializing concurrent writes from independent terminal connections
// (§4.8 "Concurrency": each connection has its own upstream and audit
// entries are independent, but they share one stream).
type Logger struct {
	mu sync.Mutex
	w  io.Writer
}

func New(w io.Writer) *Logger {
	return &Logger{w: w}
}

func (l *Logger) RecordInput(projectID, userID, content string) error {
	entry := Entry{
		Event:     "terminal_input",
		ProjectID: projectID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Content:   content,
	}
	buf, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(buf)
	return err
}
