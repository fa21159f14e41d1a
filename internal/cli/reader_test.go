package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonBlockingReader_ReadLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantEOF bool
	}{
		{name: "code", input: "123456\n", want: "123456"},
		{name: "surrounding whitespace", input: "  y \r\n", want: "y"},
		{name: "blank line", input: "\n", want: ""},
		{name: "last line without newline", input: "4321", want: "4321"},
		{name: "nothing left", input: "", wantEOF: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewNonBlockingReader(strings.NewReader(tt.input)).ReadLine(context.Background())
			if tt.wantEOF {
				assert.ErrorIs(t, err, io.EOF)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNonBlockingReader_CanceledBeforeRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNonBlockingReader(strings.NewReader("y\n")).ReadLine(ctx)
	assert.ErrorIs(t, err, ErrInputCancelled)
}

func TestNonBlockingReader_CanceledWhileWaiting(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() {
		_ = pw.Close()
		_ = pr.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewNonBlockingReader(pr).ReadLine(ctx)
	assert.ErrorIs(t, err, ErrInputCancelled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNonBlockingReader_SuccessiveLines(t *testing.T) {
	nbr := NewNonBlockingReader(strings.NewReader("first\nsecond\n"))
	ctx := context.Background()

	for _, want := range []string{"first", "second"} {
		got, err := nbr.ReadLine(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCodePrompt(t *testing.T) {
	var out strings.Builder
	prompt := CodePrompt(NewNonBlockingReader(strings.NewReader(" 1234 \n")), &out)

	code, err := prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1234", code)
	assert.Contains(t, out.String(), "Enter the code")
}

func TestCodePrompt_Empty(t *testing.T) {
	var out strings.Builder
	prompt := CodePrompt(NewNonBlockingReader(strings.NewReader("\n")), &out)

	_, err := prompt(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCode)
}
