package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bobmcallan/mcp-bridge/internal/common"
)

// ErrProtocol indicates a response stream that contained no parseable
// record at all. Individual malformed lines are skipped, not fatal.
var ErrProtocol = errors.New("no valid records in response stream")

// maxLineSize bounds a single stream line. Tool-call arguments can be
// large, so this is generous.
const maxLineSize = 1 << 20 // 1MB

// Stream reads line-delimited JSON chat records from a response body.
// Partial lines split across network reads are buffered until a full
// line is available; a trailing record without a terminator is still
// delivered. Malformed lines are skipped with a warning.
type Stream struct {
	body      io.ReadCloser
	scanner   *bufio.Scanner
	logger    *common.Logger
	valid     int
	malformed int
}

func newStream(body io.ReadCloser, logger *common.Logger) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Stream{body: body, scanner: scanner, logger: logger}
}

// Next returns the next parsed record. It returns io.EOF when the stream
// ends normally, and ErrProtocol when the stream ends having produced
// nothing but malformed lines.
func (s *Stream) Next() (*ChatChunk, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			s.malformed++
			s.logger.Warn().Str("error", err.Error()).Msg("skipping malformed stream line")
			continue
		}
		s.valid++
		return &chunk, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read failed: %w", err)
	}
	if s.valid == 0 && s.malformed > 0 {
		return nil, fmt.Errorf("%w (%d malformed lines)", ErrProtocol, s.malformed)
	}
	return nil, io.EOF
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}
