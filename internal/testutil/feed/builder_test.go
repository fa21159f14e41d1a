package feed

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/Veraticus/trsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_CardPaymentsContinueNumbering(t *testing.T) {
	txs := NewBuilder().
		WithCardPayments(2).
		WithVaultDeposit("v", "-5").
		WithCardPayments(1).
		Build()

	require.Len(t, txs, 4)
	assert.Equal(t, "t1", txs[0].LegID)
	assert.Equal(t, "t2", txs[1].LegID)
	assert.True(t, txs[2].IsVault())
	assert.Equal(t, "t4", txs[3].LegID)
	assert.Less(t, txs[0].CreatedDate, txs[3].CreatedDate)
}

func TestBuilder_WriteFileRoundTrips(t *testing.T) {
	path := NewBuilder().
		WithCurrency("USD").
		WithCardPayments(1).
		WithDeclined("d1").
		WriteFile(t, t.TempDir())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var txs []model.RawTransaction
	require.NoError(t, json.Unmarshal(data, &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, "USD", txs[0].CurrencyCode())
	assert.Equal(t, "-1.5", txs[0].RealAmount().String())
	assert.True(t, txs[1].IsDeclined())
}
