// Package jsonstream implements the streaming JSON writer (spec §4.12,
// C12): a stack-based writer that emits valid JSON incrementally without
// ever buffering a whole response in memory, tracking separator state
// through a small tag stack rather than string concatenation. Grounded on
// silkworm/silkrpc's json/stream.cpp.
package jsonstream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// tag records what the writer last did at one nesting level, driving
// whether the next item needs a leading comma (spec §4.12 "separator
// bookkeeping").
type tag int

const (
	tagOpen         tag = iota + 1 // container just opened, no items yet
	tagFieldWritten                // an object field name was written, its value is next
	tagEntryWritten                // at least one complete item exists at this level
)

// Writer incrementally emits JSON to an io.Writer, buffering only as much
// as bufio.Writer does for syscall batching. Every Open/Close/Write call
// is synchronous: there is no internal goroutine or channel (spec §4.12
// "Concurrency — none").
type Writer struct {
	w     *bufio.Writer
	stack []tag
	err   error
}

// New wraps w. Callers must call Flush when done to push any buffered
// bytes out.
func New(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Err returns the first write error encountered, if any; every method is
// then a no-op.
func (s *Writer) Err() error { return s.err }

func (s *Writer) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *Writer) write(b []byte) {
	if s.err != nil {
		return
	}
	if _, err := s.w.Write(b); err != nil {
		s.fail(err)
	}
}

// beforeItem is called immediately before writing any item (an object
// field name, an array element, or a bare top-level value): it emits the
// comma a prior sibling at this level requires, then marks this level as
// having a complete entry. A pending field name (tagFieldWritten) needs
// no comma — the value completes the field, it isn't a new sibling.
func (s *Writer) beforeItem() {
	if len(s.stack) == 0 {
		return
	}
	idx := len(s.stack) - 1
	if s.stack[idx] == tagEntryWritten {
		s.write([]byte(","))
	}
	s.stack[idx] = tagEntryWritten
}

// OpenObject starts a JSON object.
func (s *Writer) OpenObject() {
	s.beforeItem()
	s.write([]byte("{"))
	s.stack = append(s.stack, tagOpen)
}

// CloseObject closes the innermost open object.
func (s *Writer) CloseObject() {
	s.write([]byte("}"))
	s.pop()
}

// OpenArray starts a JSON array.
func (s *Writer) OpenArray() {
	s.beforeItem()
	s.write([]byte("["))
	s.stack = append(s.stack, tagOpen)
}

// CloseArray closes the innermost open array.
func (s *Writer) CloseArray() {
	s.write([]byte("]"))
	s.pop()
}

func (s *Writer) pop() {
	if len(s.stack) == 0 {
		return
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// WriteField writes an object field name, to be followed by exactly one
// value-writing call.
func (s *Writer) WriteField(name string) {
	s.beforeItem()
	s.write([]byte(strconv.Quote(name)))
	s.write([]byte(":"))
	if len(s.stack) > 0 {
		s.stack[len(s.stack)-1] = tagFieldWritten
	}
}

// WriteString writes a JSON string value.
func (s *Writer) WriteString(v string) {
	s.beforeValue()
	s.write([]byte(strconv.Quote(v)))
}

// WriteJSON writes v's json.Marshal encoding verbatim, for values already
// shaped as JSON (e.g. a pre-encoded hex quantity) where re-decoding into
// a Go value first would be wasted work.
func (s *Writer) WriteJSON(v any) {
	s.beforeValue()
	if s.err != nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.fail(fmt.Errorf("jsonstream: marshal: %w", err))
		return
	}
	s.write(b)
}

// beforeValue is beforeItem specialized for leaf values: a value
// completing a field (top is tagFieldWritten) needs no separator at all,
// since WriteField already positioned it; any other context is a bare
// array element or top-level value and goes through the normal item
// separator logic.
func (s *Writer) beforeValue() {
	if len(s.stack) > 0 && s.stack[len(s.stack)-1] == tagFieldWritten {
		s.stack[len(s.stack)-1] = tagEntryWritten
		return
	}
	s.beforeItem()
}

// Flush pushes any buffered bytes to the underlying writer.
func (s *Writer) Flush() error {
	if s.err != nil {
		return s.err
	}
	return s.w.Flush()
}
