// Package diag implements level-based debug logging that also mirrors
// every logged line into the record pipeline, grounded on
// original_source/condalf/rdlog.c, plus the hex byte dumper grounded on
// hexout.c.
package diag

import (
	"fmt"
	"log"
	"sync"
	"time"

	"ringlog/internal/domain"
	"ringlog/internal/platform/logger"
)

// Level mirrors RDLOG_ERR..RDLOG_DBG.
type Level int

const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERR"
	case LevelWarn:
		return "WRN"
	case LevelInfo:
		return "INF"
	case LevelDebug:
		return "DBG"
	default:
		return "???"
	}
}

// RecordSink prints every logged line locally via the standard
// library's log package and — once Enable has been called — also
// forwards it as a string record through a *logger.Logger, mirroring
// rdlog.c's dual local-printf-plus-recstr_put behavior.
type RecordSink struct {
	mu   sync.Mutex
	logg *logger.Logger
	now  func() time.Time
}

// NewRecordSink returns a sink that only prints locally until Enable is
// called, mirroring RDLOG's _logger starting out nil.
func NewRecordSink() *RecordSink {
	return &RecordSink{now: time.Now}
}

// Enable attaches a Logger every subsequent Log call also writes
// through, mirroring RDLOG_enable. Calling it again replaces the
// previous Logger without closing it — the caller owns that lifecycle.
func (s *RecordSink) Enable(logg *logger.Logger) {
	s.mu.Lock()
	s.logg = logg
	s.mu.Unlock()
}

// Disable stops remote forwarding; local printing continues.
func (s *RecordSink) Disable() {
	s.mu.Lock()
	s.logg = nil
	s.mu.Unlock()
}

// Log prints the formatted line locally and, if enabled, forwards it as
// a SenML string record named after the level, mirroring _rdlog.
func (s *RecordSink) Log(level Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", level, msg)

	s.mu.Lock()
	logg := s.logg
	s.mu.Unlock()
	if logg == nil {
		return
	}

	now := s.now()
	rec := &domain.Record{
		Name:      level.String(),
		Timestamp: domain.Timestamp{Sec: now.Unix(), USec: int32(now.Nanosecond() / 1000)},
		Value:     domain.RecordValue{Kind: domain.ValueString, Str: msg},
	}
	if err := logg.Put(rec); err != nil {
		log.Printf("[diag] dropped remote log line: %v", err)
	}
}

func (s *RecordSink) Errorf(format string, args ...interface{}) { s.Log(LevelError, format, args...) }
func (s *RecordSink) Warnf(format string, args ...interface{})  { s.Log(LevelWarn, format, args...) }
func (s *RecordSink) Infof(format string, args ...interface{})  { s.Log(LevelInfo, format, args...) }
func (s *RecordSink) Debugf(format string, args ...interface{}) { s.Log(LevelDebug, format, args...) }

// HexDump writes buf to the log, sixteen bytes per line, bracketed by a
// begin/end banner named after label. Grounded on hexout.c's
// vfs_file_ops_t wrapper around printf; reimplemented here as a direct
// call rather than a virtual-file shim since Go has no equivalent of
// binding a fresh VFS descriptor per debug session.
func HexDump(label string, buf []byte) {
	if label == "" {
		label = "Hexout"
	}

	log.Printf("======== %s begin ========", label)
	for i := 0; i < len(buf); i += 16 {
		end := i + 16
		if end > len(buf) {
			end = len(buf)
		}
		log.Print(formatHexLine(buf[i:end]))
	}
	log.Printf("======== %s end ========", label)
}

func formatHexLine(chunk []byte) string {
	line := ""
	for _, b := range chunk {
		line += fmt.Sprintf("0x%02X, ", b)
	}
	return line
}
