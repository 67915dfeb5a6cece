package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/wandeoki/afritrace/internal/ledger/event"
)

// ReaderSource yields events from a newline-delimited JSON export, one
// envelope per line. Blank lines are skipped. It implements Source and
// reports io.EOF when the reader is exhausted.
type ReaderSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewReaderSource wraps an NDJSON event export.
func NewReaderSource(r io.Reader) *ReaderSource {
	scanner := bufio.NewScanner(r)
	// Offset payloads can run long; default token size is too small.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ReaderSource{scanner: scanner}
}

// Next returns the next envelope from the export.
func (s *ReaderSource) Next(ctx context.Context) (event.Envelope, error) {
	for {
		if err := ctx.Err(); err != nil {
			return event.Envelope{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return event.Envelope{}, fmt.Errorf("read event line %d: %w", s.line+1, err)
			}
			return event.Envelope{}, io.EOF
		}
		s.line++

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		env, err := event.DecodeEnvelope(line)
		if err != nil {
			return event.Envelope{}, fmt.Errorf("event line %d: %w", s.line, err)
		}
		return env, nil
	}
}
