package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	ErrInputCancelled = errors.New("input canceled")
	ErrEmptyCode      = errors.New("no code entered")
)

// NonBlockingReader reads operator input without outliving the run: a read
// returns as soon as ctx is done, even if no line has arrived.
type NonBlockingReader struct {
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewNonBlockingReader wraps r. It panics on a nil reader.
func NewNonBlockingReader(r io.Reader) *NonBlockingReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	return &NonBlockingReader{reader: bufio.NewReader(r)}
}

type readResult struct {
	err   error
	value string
}

// ReadString reads up to and including delim. When ctx ends first the
// pending read keeps running in the background and its result is dropped.
func (r *NonBlockingReader) ReadString(ctx context.Context, delim byte) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}

	done := make(chan readResult, 1)
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		value, err := r.reader.ReadString(delim)
		done <- readResult{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-done:
		return res.value, res.err
	}
}

// ReadLine returns the next line without surrounding whitespace. A last line
// that ends at EOF without a newline is still returned.
func (r *NonBlockingReader) ReadLine(ctx context.Context) (string, error) {
	line, err := r.ReadString(ctx, '\n')
	if errors.Is(err, io.EOF) && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// CodePrompt asks for the two-factor code on w and reads it from r.
func CodePrompt(r *NonBlockingReader, w io.Writer) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if _, err := fmt.Fprint(w, FormatPrompt("Enter the code sent to your Trade Republic app")); err != nil {
			return "", err
		}
		code, err := r.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if code == "" {
			return "", ErrEmptyCode
		}
		return code, nil
	}
}
