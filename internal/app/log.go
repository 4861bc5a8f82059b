package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// mvsHandler renders slog records as one tab-separated line per record:
// timestamp, level, operation id, message, then any key=value attrs. Every
// line of a run carries the same operation id, so a grep over mvs.log
// reconstructs one CLI invocation or one server lifetime.
type mvsHandler struct {
	w     io.Writer
	opID  string
	attrs []slog.Attr
}

func (h *mvsHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *mvsHandler) Handle(_ context.Context, r slog.Record) error {
	// Assemble the full line before writing so two goroutines logging into
	// the same MultiWriter never interleave mid-line.
	var line bytes.Buffer
	fmt.Fprintf(&line, "%s\t%s\t%s\t%s",
		r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Level.String(), h.opID, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&line, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&line, "\t%s=%v", a.Key, a.Value)
		return true
	})
	line.WriteByte('\n')

	_, err := h.w.Write(line.Bytes())
	return err
}

func (h *mvsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &mvsHandler{w: h.w, opID: h.opID, attrs: merged}
}

func (h *mvsHandler) WithGroup(string) slog.Handler { return h }

// newLogger opens logDir/mvs.log for append and returns a logger writing
// there and to stderr. The file is returned for the caller to close.
func newLogger(logDir string, opID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "mvs.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := &mvsHandler{w: io.MultiWriter(f, os.Stderr), opID: opID}
	return slog.New(handler), f, nil
}

// slogAdapter satisfies the store's Logger interface over *slog.Logger.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
