// Package trc reads and writes PEAK-compatible ASCII trace files
// (TRC file version 1.1). The column grammar is fixed for interoperability
// with the third-party tool ecosystem and must not drift.
package trc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/canscope/canscope/internal/tracebuf"
)

// FileVersion is the trace file format version tag written in the header.
const FileVersion = "1.1"

// StartTimeLayout is the wall-clock layout used in the header comment.
const StartTimeLayout = "01/02/2006 15:04:05.000"

const bannerRule = ";-------------------------------------------------------------------------------"

// Writer serializes trace records to a destination, one fully formed line
// per record so an I/O failure never leaves a partially written line behind.
type Writer struct {
	dst     io.Writer
	file    *os.File
	written int
	line    bytes.Buffer
}

// NewWriter returns a writer emitting to dst. Call WriteHeader before the
// first record.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// Create opens (truncating) a trace file at path and writes the header with
// the given recording start time.
func Create(path string, start time.Time) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trc: create %s: %w", path, err)
	}
	w := &Writer{dst: f, file: f}
	if err := w.WriteHeader(start); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

// MessageCount returns the number of data lines written so far.
func (w *Writer) MessageCount() int { return w.written }

// WriteHeader emits the version tag, the recording start time comment and
// the column banner.
func (w *Writer) WriteHeader(start time.Time) error {
	w.line.Reset()
	fmt.Fprintf(&w.line, ";$FILEVERSION=%s\n", FileVersion)
	fmt.Fprintf(&w.line, ";   Start time: %s\n", start.Format(StartTimeLayout))
	w.line.WriteString(bannerRule + "\n")
	w.line.WriteString(";   Message Number) Time Offset   Type   ID    Rx/Tx   d]  Data Bytes ...\n")
	w.line.WriteString(bannerRule + "\n")
	return w.flushLine()
}

// WriteRecord emits one data line. Message numbers are assigned 1-based in
// call order; the record's offset is rendered with exactly 3 decimal places.
func (w *Writer) WriteRecord(rec tracebuf.Record) error {
	w.line.Reset()
	w.written++
	w.line.WriteString(FormatRecord(w.written, rec))
	w.line.WriteByte('\n')
	return w.flushLine()
}

// flushLine writes the staged line in a single call.
func (w *Writer) flushLine() error {
	if _, err := w.dst.Write(w.line.Bytes()); err != nil {
		return fmt.Errorf("trc: write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file, if the writer owns one.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("trc: close: %w", err)
	}
	w.file = nil
	return nil
}

// WriteAll serializes a complete record sequence, header included, to dst.
// Writing never mutates the records.
func WriteAll(dst io.Writer, start time.Time, records []tracebuf.Record) error {
	w := NewWriter(dst)
	if err := w.WriteHeader(start); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile serializes a record sequence to a new file at path.
func WriteFile(path string, start time.Time, records []tracebuf.Record) error {
	w, err := Create(path, start)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.WriteRecord(rec); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// FormatRecord renders a record as it would appear in a trace file, without
// the trailing newline. Intended for console output.
func FormatRecord(number int, rec tracebuf.Record) string {
	var sb strings.Builder
	f := rec.Frame
	payload := f.DataString()
	kind := "d"
	if f.IsError() {
		kind = "e"
		payload = f.ErrKind.String()
	}
	fmt.Fprintf(&sb, "%7d)%11.3f 1  %04X %s  %s %d",
		number, rec.Offset.Seconds(), f.ID, f.Dir, kind, f.DLC())
	if payload != "" {
		sb.WriteString("  ")
		sb.WriteString(payload)
	}
	return sb.String()
}
