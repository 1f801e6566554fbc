package serve

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/zero-day-ai/attack-kb/tool"
)

// MaxLineBytes bounds a single stdio request line.
const MaxLineBytes = 1 << 20

// RunStdio serves tools over newline-delimited JSON: one Request per input
// line, one Response per output line, in order. It returns nil when in is
// exhausted. Cancellation is observed between lines.
func RunStdio(ctx context.Context, tools *tool.Registry, in io.Reader, out io.Writer, opts ...Option) error {
	if tools == nil {
		return errors.New("tool registry cannot be nil")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.Logger.With("component", "serve", "transport", "stdio")
	d := newDispatcher(tools, cfg, logger)

	br := bufio.NewReaderSize(in, 64*1024)

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	logger.Info("stdio server started", "tools", tools.Len())

	var buf []byte
	for {
		line, tooLong, readErr := readLine(br, buf)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read request: %w", readErr)
		}
		buf = line
		if err := ctx.Err(); err != nil {
			return err
		}

		var resp *Response
		switch trimmed := bytes.TrimSpace(line); {
		case tooLong:
			logger.Warn("request line too long", "limit_bytes", MaxLineBytes)
			resp = &Response{
				ID:    uuid.NewString(),
				Error: invalidRequest("", fmt.Sprintf("request line exceeds %d bytes", MaxLineBytes)),
			}
		case len(trimmed) > 0:
			var req Request
			if err := json.Unmarshal(trimmed, &req); err != nil {
				resp = &Response{
					ID:    uuid.NewString(),
					Error: invalidRequest("", fmt.Sprintf("malformed request: %v", err)),
				}
			} else {
				r := d.handle(ctx, req)
				resp = &r
			}
		}

		if resp != nil {
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
		if readErr != nil {
			return nil
		}
	}
}

// readLine reads up to the next newline into buf. A line longer than
// MaxLineBytes is consumed and dropped, and tooLong is set.
func readLine(br *bufio.Reader, buf []byte) ([]byte, bool, error) {
	buf = buf[:0]
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(bytes.TrimRight(chunk, "\r\n")) > MaxLineBytes {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf, tooLong, err
	}
}
