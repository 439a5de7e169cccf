// internal/models/sse.go
package models

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// sseDecoder turns one SSE event into a text fragment. done ends the stream.
type sseDecoder func(event, data string) (text string, done bool, err error)

// sseStream reads Server-Sent Events from a response body
type sseStream struct {
	ctx    context.Context
	body   io.ReadCloser
	reader *bufio.Reader
	decode sseDecoder

	event string
	done  bool

	closeOnce sync.Once
	closeErr  error
}

func newSSEStream(ctx context.Context, body io.ReadCloser, decode sseDecoder) *sseStream {
	return &sseStream{
		ctx:    ctx,
		body:   body,
		reader: bufio.NewReader(body),
		decode: decode,
	}
}

func (s *sseStream) Recv() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			return "", err
		}

		line, err := s.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				s.done = true
				return "", io.EOF
			}
			// a cancelled request surfaces as a read error on the body
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", err
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			s.event = ""
			continue
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "event:"):
			s.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		case !strings.HasPrefix(line, "data:"):
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		text, done, err := s.decode(s.event, data)
		if err != nil {
			return "", err
		}
		if done {
			s.done = true
		}
		if text != "" {
			return text, nil
		}
	}
}

func (s *sseStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
