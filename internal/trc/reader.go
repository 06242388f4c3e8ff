package trc

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/canscope/canscope/internal/frame"
	"github.com/canscope/canscope/internal/tracebuf"
)

// ParseError reports a malformed trace line. By default a ParseError aborts
// the whole read; see SkipInvalid for the lenient variant.
type ParseError struct {
	Line    int
	Content string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trc: line %d: %s: %q", e.Line, e.Reason, e.Content)
}

// Trace is the result of reading a trace file: the recorded start time from
// the header (zero if absent) and the ordered record sequence.
type Trace struct {
	Start   time.Time
	Records []tracebuf.Record
}

// Duration returns the offset of the last record, or zero for an empty trace.
func (t *Trace) Duration() time.Duration {
	if len(t.Records) == 0 {
		return 0
	}
	return t.Records[len(t.Records)-1].Offset
}

// ReadOption configures Read.
type ReadOption func(*reader)

// SkipInvalid makes the reader skip malformed lines instead of aborting.
// Skipped lines are counted and retrievable via the returned Trace only as
// missing message numbers; the default (abort) is the safer policy.
func SkipInvalid() ReadOption {
	return func(r *reader) { r.skipInvalid = true }
}

type reader struct {
	skipInvalid bool
}

// Read parses a TRC stream into an ordered record sequence. Comment lines
// are skipped, except that the recorded start time seeds the restored
// session's time origin. Message numbers must be strictly increasing.
func Read(src io.Reader, opts ...ReadOption) (*Trace, error) {
	r := &reader{}
	for _, opt := range opts {
		opt(r)
	}

	trace := &Trace{}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	lastNumber := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ";") {
			if start, ok := parseStartTime(line); ok {
				trace.Start = start
			}
			continue
		}
		rec, err := r.parseLine(lineNo, line, lastNumber, trace.Start)
		if err != nil {
			if r.skipInvalid {
				continue
			}
			return nil, err
		}
		lastNumber = int(rec.Seq)
		trace.Records = append(trace.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trc: read: %w", err)
	}
	return trace, nil
}

// ReadFile parses the TRC file at path.
func ReadFile(path string, opts ...ReadOption) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trc: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, opts...)
}

// parseStartTime extracts the recording start time from a header comment.
// The microsecond variant is accepted for files written by older tools.
func parseStartTime(line string) (time.Time, bool) {
	const marker = "Start time:"
	idx := strings.Index(line, marker)
	if idx < 0 {
		return time.Time{}, false
	}
	value := strings.TrimSpace(line[idx+len(marker):])
	for _, layout := range []string{StartTimeLayout, "01/02/2006 15:04:05.000000"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseLine parses one positional data line per the fixed column grammar:
// number ")" / offset / type / id / Rx|Tx / d|e / length / payload tokens.
func (r *reader) parseLine(lineNo int, line string, lastNumber int, start time.Time) (tracebuf.Record, error) {
	fail := func(reason string) (tracebuf.Record, error) {
		return tracebuf.Record{}, &ParseError{Line: lineNo, Content: line, Reason: reason}
	}

	fields := strings.Fields(line)
	if len(fields) < 7 {
		return fail("short line, expected at least 7 columns")
	}

	numField, ok := strings.CutSuffix(fields[0], ")")
	if !ok {
		return fail("message number not terminated by ')'")
	}
	number, err := strconv.Atoi(numField)
	if err != nil {
		return fail("invalid message number")
	}
	if number <= lastNumber {
		return fail(fmt.Sprintf("message number %d not strictly increasing after %d", number, lastNumber))
	}

	offsetSec, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || offsetSec < 0 {
		return fail("invalid time offset")
	}
	offset := time.Duration(math.Round(offsetSec*1000)) * time.Millisecond

	if fields[2] != "1" {
		return fail(fmt.Sprintf("unsupported type code %q", fields[2]))
	}

	id, err := strconv.ParseUint(fields[3], 16, 32)
	if err != nil || id > frame.MaxExtendedID {
		return fail("invalid arbitration identifier")
	}

	var dir frame.Direction
	switch fields[4] {
	case "Rx":
		dir = frame.Rx
	case "Tx":
		dir = frame.Tx
	default:
		return fail(fmt.Sprintf("invalid direction token %q", fields[4]))
	}

	kind := fields[5]
	if kind != "d" && kind != "e" {
		return fail(fmt.Sprintf("invalid frame-kind token %q", kind))
	}

	length, err := strconv.Atoi(fields[6])
	if err != nil || length < 0 || length > frame.MaxFDPayload {
		return fail("invalid data length")
	}

	f := frame.Frame{
		ID:        uint32(id),
		Dir:       dir,
		Timestamp: start.Add(offset),
	}
	if id > frame.MaxStandardID {
		f.Flags |= frame.Extended
	}
	if length > frame.MaxClassicPayload {
		f.Flags |= frame.FD
	}

	rest := fields[7:]
	if kind == "e" {
		errKind, ok := frame.ParseErrorKind(strings.Join(rest, " "))
		if !ok {
			return fail("invalid error-kind token")
		}
		f.Flags |= frame.Error
		f.ErrKind = errKind
	} else {
		if len(rest) != length {
			return fail(fmt.Sprintf("declared length %d but found %d data bytes", length, len(rest)))
		}
		if length > 0 {
			data := make([]byte, length)
			for i, tok := range rest {
				if len(tok) != 2 {
					return fail(fmt.Sprintf("data byte %q is not 2 hex digits", tok))
				}
				b, err := strconv.ParseUint(tok, 16, 8)
				if err != nil {
					return fail(fmt.Sprintf("invalid hex data byte %q", tok))
				}
				data[i] = byte(b)
			}
			f.Data = data
		}
	}

	return tracebuf.Record{
		Seq:    uint64(number),
		Offset: offset,
		Frame:  f,
	}, nil
}
