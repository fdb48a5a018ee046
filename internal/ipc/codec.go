package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/tidwall/gjson"
)

// Wire format: a single JSON object terminated by '\n'. JSON escaping keeps
// raw newlines out of string fields, so the terminator is unambiguous.
//
//	{"v":1,"command":"make","exit_code":0,"duration_ms":1200,"origin":"box"}
const (
	// ProtocolVersion is the value of the "v" field this package speaks.
	ProtocolVersion = 1
	// MaxRecordSize bounds a single record including its terminator.
	MaxRecordSize = 64 << 10

	terminator = '\n'

	// maxDurationMS is the largest duration_ms that fits a time.Duration.
	maxDurationMS = math.MaxInt64 / int64(time.Millisecond)
)

// pingProbe is what older clients write to check that a listener is up.
var pingProbe = []byte("ping")

var (
	// ErrMalformed matches any DecodeError of kind Malformed.
	ErrMalformed = errors.New("malformed event")
	// ErrIncomplete matches any DecodeError of kind Incomplete.
	ErrIncomplete = errors.New("incomplete event")
)

// DecodeErrorKind distinguishes bad input from input that ended too soon.
type DecodeErrorKind int

const (
	Malformed DecodeErrorKind = iota + 1
	Incomplete
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Incomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// DecodeError is returned by Decode and ReadEvent.
type DecodeError struct {
	Kind   DecodeErrorKind
	Reason string
	Err    error

	data []byte
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%s event: %s", e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrMalformed and ErrIncomplete.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Kind == Malformed
	case ErrIncomplete:
		return e.Kind == Incomplete
	}
	return false
}

// IsPing reports whether err came from reading a bare liveness probe.
func IsPing(err error) bool {
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != Incomplete {
		return false
	}
	return bytes.Equal(bytes.TrimSpace(de.data), pingProbe)
}

func malformed(reason string, err error) *DecodeError {
	return &DecodeError{Kind: Malformed, Reason: reason, Err: err}
}

type record struct {
	Version    int    `json:"v"`
	Command    string `json:"command"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	Signal     string `json:"signal,omitempty"`
	DurationMS *int64 `json:"duration_ms"`
	Origin     string `json:"origin,omitempty"`
}

// Encode serializes e as one terminated record. Durations are sent with
// millisecond resolution.
func Encode(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	ms := e.Duration.Milliseconds()
	rec := record{
		Version:    ProtocolVersion,
		Command:    e.Command,
		DurationMS: &ms,
		Origin:     e.Origin,
	}
	if e.Status.IsSignal() {
		rec.Signal = e.Status.Signal
	} else {
		code := e.Status.Code
		rec.ExitCode = &code
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if len(data)+1 > MaxRecordSize {
		return nil, fmt.Errorf("encoded event is %d bytes, limit is %d", len(data)+1, MaxRecordSize)
	}
	return append(data, terminator), nil
}

// Decode parses exactly one terminated record. It returns a DecodeError of
// kind Incomplete when data holds no terminator yet.
func Decode(data []byte) (Event, error) {
	if len(data) > MaxRecordSize {
		return Event{}, malformed(fmt.Sprintf("record exceeds %d bytes", MaxRecordSize), nil)
	}
	idx := bytes.IndexByte(data, terminator)
	if idx < 0 {
		if len(data) >= MaxRecordSize {
			return Event{}, malformed(fmt.Sprintf("no terminator within %d bytes", MaxRecordSize), nil)
		}
		return Event{}, &DecodeError{Kind: Incomplete, Reason: "missing terminator", data: data}
	}
	if idx+1 != len(data) {
		return Event{}, malformed(fmt.Sprintf("%d unexpected bytes after record", len(data)-idx-1), nil)
	}
	return decodeLine(bytes.TrimSuffix(data[:idx], []byte{'\r'}))
}

func decodeLine(line []byte) (Event, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return Event{}, malformed("empty record", nil)
	}
	if !gjson.ValidBytes(line) {
		return Event{}, malformed("invalid JSON", nil)
	}
	v := gjson.GetBytes(line, "v")
	if v.Type != gjson.Number || v.Int() != ProtocolVersion {
		return Event{}, malformed(fmt.Sprintf("unsupported protocol version %q", v.Raw), nil)
	}

	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Event{}, malformed("unexpected field type", err)
	}

	if rec.DurationMS == nil {
		return Event{}, malformed("missing duration_ms", nil)
	}
	if *rec.DurationMS < 0 || *rec.DurationMS > maxDurationMS {
		return Event{}, malformed(fmt.Sprintf("duration_ms %d out of range", *rec.DurationMS), nil)
	}
	e := Event{
		Command:  rec.Command,
		Duration: time.Duration(*rec.DurationMS) * time.Millisecond,
		Origin:   rec.Origin,
	}
	switch {
	case rec.ExitCode != nil && rec.Signal != "":
		return Event{}, malformed("both exit_code and signal present", nil)
	case rec.ExitCode != nil:
		e.Status = Exited(*rec.ExitCode)
	case rec.Signal != "":
		e.Status = Signaled(rec.Signal)
	default:
		return Event{}, malformed("missing exit_code or signal", nil)
	}

	if err := e.Validate(); err != nil {
		return Event{}, malformed("invalid event", err)
	}
	return e, nil
}

// ReadEvent reads one record from r, consuming at most MaxRecordSize bytes.
// A stream that ends, or a read that fails,
// before the terminator yields a DecodeError of kind Incomplete wrapping the
// read error.
func ReadEvent(r io.Reader) (Event, error) {
	br := bufio.NewReader(io.LimitReader(r, MaxRecordSize))
	line, err := br.ReadBytes(terminator)
	if err != nil {
		if len(line) >= MaxRecordSize {
			return Event{}, malformed(fmt.Sprintf("no terminator within %d bytes", MaxRecordSize), nil)
		}
		reason := "stream ended before terminator"
		if !errors.Is(err, io.EOF) {
			reason = "read failed before terminator"
		} else {
			err = nil
		}
		return Event{}, &DecodeError{Kind: Incomplete, Reason: reason, Err: err, data: line}
	}
	return decodeLine(bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'}))
}
