package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var ErrRecordTooLarge = errors.New("record exceeds size limit")

// Record is anything the client can put on the wire.
type Record interface {
	ActionName() string
}

// Encode renders rec as one delimited record.
func Encode(rec Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("trying to encode nil record")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoder.Encode terminates the value with '\n', which is our delimiter.
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode %s: %w", rec.ActionName(), err)
	}
	return buf.Bytes(), nil
}

// DecodeError describes one record that could not be decoded. The bytes that
// follow it are unaffected.
type DecodeError struct {
	Record []byte
	Err    error
}

const maxErrorRecord = 128

func (e *DecodeError) Error() string {
	rec := e.Record
	if len(rec) > maxErrorRecord {
		rec = rec[:maxErrorRecord]
	}
	return fmt.Sprintf("bad record %q: %v", rec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder splits a byte stream into records. It keeps whatever trails the last
// delimiter for the next Feed call. Not safe for concurrent use.
type Decoder struct {
	buf        []byte
	maxRecord  int
	discarding bool
}

func NewDecoder(maxRecord int) *Decoder {
	if maxRecord <= 0 {
		maxRecord = DefaultMaxRecordBytes
	}
	return &Decoder{maxRecord: maxRecord}
}

// Result is one completed record: either a decoded Message or the reason it
// was discarded.
type Result struct {
	Message Message
	Err     error
}

// Feed appends chunk and returns every record it completes. Records that fail
// to decode are skipped; their errors are combined into the returned error and
// can be split with multierr.Errors.
func (d *Decoder) Feed(chunk []byte) ([]Message, error) {
	var (
		msgs []Message
		errs error
	)
	for _, r := range d.Next(chunk) {
		if r.Err != nil {
			errs = multierr.Append(errs, r.Err)
			continue
		}
		msgs = append(msgs, r.Message)
	}
	return msgs, errs
}

// Next appends chunk and returns the records it completes, good and bad, in
// stream order.
func (d *Decoder) Next(chunk []byte) []Result {
	d.buf = append(d.buf, chunk...)

	var out []Result
	for {
		i := bytes.IndexByte(d.buf, Delimiter)
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]

		if d.discarding {
			// Tail of a record already reported as too large.
			d.discarding = false
			continue
		}
		if len(line) > d.maxRecord {
			out = append(out, Result{Err: tooLarge(line)})
			continue
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		msg, err := ParseRecord(line)
		if err != nil {
			out = append(out, Result{Err: &DecodeError{Record: bytes.Clone(line), Err: err}})
			continue
		}
		out = append(out, Result{Message: msg})
	}

	if len(d.buf) > d.maxRecord {
		if !d.discarding {
			out = append(out, Result{Err: tooLarge(d.buf)})
			d.discarding = true
		}
		d.buf = d.buf[:0]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}

	return out
}

// Buffered returns the size of the pending partial record.
func (d *Decoder) Buffered() int { return len(d.buf) }

func tooLarge(b []byte) *DecodeError {
	n := len(b)
	if n > maxErrorRecord {
		n = maxErrorRecord
	}
	return &DecodeError{Record: bytes.Clone(b[:n]), Err: ErrRecordTooLarge}
}
