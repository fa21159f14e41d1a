package traderepublic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/trsync/internal/model"
)

// StdinPath makes a FileSource read from standard input.
const StdinPath = "-"

// ErrUnsupportedFeedFormat is returned for files that hold neither a JSON array nor a page envelope.
var ErrUnsupportedFeedFormat = errors.New("unsupported feed file format")

// FileSource reads an exported timeline from disk. The file holds either a
// JSON array of transactions or a timeline page envelope with an "items" list.
type FileSource struct {
	stdin io.Reader
	path  string
}

// NewFileSource creates a source for path. A path of "-" reads stdin.
func NewFileSource(path string, stdin io.Reader) *FileSource {
	if stdin == nil {
		stdin = os.Stdin
	}
	return &FileSource{path: path, stdin: stdin}
}

// Fetch decodes the whole file.
func (s *FileSource) Fetch(ctx context.Context) ([]model.RawTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	if s.path == StdinPath {
		data, err = io.ReadAll(s.stdin)
	} else {
		data, err = os.ReadFile(s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feed file: %w", err)
	}

	return DecodeFeed(data)
}

// DecodeFeed parses an exported timeline.
func DecodeFeed(data []byte) ([]model.RawTransaction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var items []model.RawTransaction
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode feed: %w", err)
		}
		return items, nil
	case '{':
		var page timelinePage
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("failed to decode feed: %w", err)
		}
		return page.Items, nil
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", ErrUnsupportedFeedFormat)
	}
}
