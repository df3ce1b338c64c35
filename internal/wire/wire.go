// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package wire holds the HTTP/1.1 message framing shared by the
// client and socket server codecs.
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/gogama/connector/header"
)

// ErrBodyTooLong is returned when more body bytes are written than the
// Content-Length declared.
var ErrBodyTooLong = errors.New("connector: body exceeds Content-Length")

// Framing says how a message body is delimited on the wire.
type Framing int

const (
	// FramingNone means there is no body.
	FramingNone Framing = iota
	// FramingLength means the body is Content-Length bytes long.
	FramingLength
	// FramingChunked means the body uses chunked transfer coding.
	FramingChunked
	// FramingClose means the body runs until the connection closes.
	FramingClose
)

// ContentLength interprets the values of the Content-Length fields of
// a message. Repeated identical values are accepted.
func ContentLength(values []string) (Framing, int64, error) {
	if len(values) == 0 {
		return FramingNone, 0, nil
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return FramingNone, 0, fmt.Errorf("connector: conflicting Content-Length values %q", values)
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(values[0]), 10, 64)
	if err != nil || n < 0 {
		return FramingNone, 0, fmt.Errorf("connector: invalid Content-Length %q", values[0])
	}
	if n == 0 {
		return FramingNone, 0, nil
	}
	return FramingLength, n, nil
}

// Lines are raw header lines, unfolded and in wire order. They
// implement header.Source, so a header list can be materialized from
// them lazily. A malformed line fails materialization.
type Lines []string

// ReadLines reads header lines up to and including the blank line
// ending the header section.
func ReadLines(r *textproto.Reader) (Lines, error) {
	var lines Lines
	for {
		line, err := r.ReadContinuedLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

func (l Lines) Len() int {
	return len(l)
}

func (l Lines) At(i int) (header.Field, error) {
	name, value, ok := SplitLine(l[i])
	if !ok {
		return header.Field{}, fmt.Errorf("connector: malformed header line %q", l[i])
	}
	return header.Field{Name: name, Value: value}, nil
}

// Values returns the values of the well-formed lines named name, in
// order.
func (l Lines) Values(name string) []string {
	var vs []string
	for _, line := range l {
		n, v, ok := SplitLine(line)
		if ok && strings.EqualFold(n, name) {
			vs = append(vs, v)
		}
	}
	return vs
}

// SplitLine splits a header line into its name and trimmed value.
func SplitLine(line string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(line, ":")
	if !ok || !header.ValidName(name) {
		return "", "", false
	}
	return name, strings.Trim(value, " \t"), true
}

// WriteHead writes a start line and header fields followed by the
// blank line ending the header section. Write errors are sticky in w,
// so only the last one is checked.
func WriteHead(w *bufio.Writer, startLine string, fields []header.Field) error {
	_, _ = w.WriteString(startLine)
	_, _ = w.WriteString("\r\n")
	for _, f := range fields {
		_, _ = w.WriteString(f.Name)
		_, _ = w.WriteString(": ")
		_, _ = w.WriteString(f.Value)
		_, _ = w.WriteString("\r\n")
	}
	_, err := w.WriteString("\r\n")
	return err
}

// ValidFields checks every field name and value.
func ValidFields(fields []header.Field) error {
	for _, f := range fields {
		if !header.ValidName(f.Name) {
			return fmt.Errorf("connector: invalid header name %q", f.Name)
		}
		if !header.ValidValue(f.Value) {
			return fmt.Errorf("connector: invalid value for header %q", f.Name)
		}
	}
	return nil
}

// A LengthWriter accepts exactly Remaining more bytes.
type LengthWriter struct {
	W         io.Writer
	Remaining int64
}

func (lw *LengthWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > lw.Remaining {
		return 0, ErrBodyTooLong
	}
	n, err := lw.W.Write(p)
	lw.Remaining -= int64(n)
	return n, err
}

// A LengthReader reads exactly Remaining more bytes, reporting
// io.ErrUnexpectedEOF if the underlying reader ends early.
type LengthReader struct {
	R         io.Reader
	Remaining int64
}

func (lr *LengthReader) Read(p []byte) (int, error) {
	if lr.Remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > lr.Remaining {
		p = p[:lr.Remaining]
	}
	n, err := lr.R.Read(p)
	lr.Remaining -= int64(n)
	if err == io.EOF && lr.Remaining > 0 {
		err = io.ErrUnexpectedEOF
	} else if err == nil && lr.Remaining == 0 {
		err = io.EOF
	}
	return n, err
}

// ReadTrailer consumes the trailer section after the last chunk of a
// chunked body.
func ReadTrailer(r *textproto.Reader) error {
	for {
		line, err := r.ReadLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
	}
}
