package traderepublic

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedArray = `[
	{"legId":"a1","type":"CARD_PAYMENT","createdDate":1700000000000,"description":"Shop","amount":-12.50,"category":"Groceries","currency":"EUR","state":"EXECUTED"},
	{"legId":"a2","type":"TRANSFER","createdDate":1700000100000,"description":"Alice","amount":{"value":10000,"currency":"EUR","fractionDigits":2},"state":"EXECUTED"}
]`

func TestFileSource_Array(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(feedArray), 0600))

	items, err := NewFileSource(path, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "a1", items[0].LegID)
	assert.Equal(t, "-12.5", items[0].RealAmount().String())
	assert.Equal(t, "a2", items[1].LegID)
	assert.Equal(t, "100", items[1].RealAmount().String())
	assert.Equal(t, "EUR", items[1].CurrencyCode())
}

func TestFileSource_Envelope(t *testing.T) {
	envelope := `{"items":` + feedArray + `,"cursors":{"after":""}}`

	items, err := NewFileSource(StdinPath, strings.NewReader(envelope)).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestDecodeFeed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "not json", input: "legId,type", wantErr: ErrUnsupportedFeedFormat},
		{name: "broken array", input: "[{", wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFeed([]byte(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeFeed_Empty(t *testing.T) {
	items, err := DecodeFeed([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.json"), nil).Fetch(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}
