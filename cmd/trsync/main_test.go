package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Veraticus/trsync/internal/common"
	"github.com/Veraticus/trsync/internal/config"
	"github.com/Veraticus/trsync/internal/testutil/feed"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFirefly struct {
	requests []map[string]any
	mu       sync.Mutex
}

func (f *recordingFirefly) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Transactions []map[string]any `json:"transactions"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, body.Transactions...)
	n := len(f.requests)
	f.mu.Unlock()

	_, _ = fmt.Fprintf(w, `{"data":{"id":"%d"}}`, n)
}

func (f *recordingFirefly) externalIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.requests))
	for _, tx := range f.requests {
		ids = append(ids, fmt.Sprint(tx["external_id"]))
	}
	return ids
}

func writeFeed(t *testing.T, dir string, n int) string {
	t.Helper()
	return feed.NewBuilder().WithCardPayments(n).WriteFile(t, dir)
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	for _, env := range []string{
		"TRADEREPUBLIC_PHONE", "TRADEREPUBLIC_PIN", "FIREFLY_TOKEN", "FIREFLY_URL",
		"TRADEREPUBLIC_ACCOUNT", "TRADEREPUBLIC_VAULT", "TOPUP_ACCOUNT", "WALLET_ACCOUNT", "CURRENCY",
	} {
		t.Setenv(env, "")
	}
	return home
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSync_MissingConfiguration(t *testing.T) {
	isolate(t)
	server := httptest.NewServer(&recordingFirefly{})
	defer server.Close()

	_, err := execute(t, "", "sync")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
	assert.Contains(t, err.Error(), config.MsgMissingPhone)
	assert.Contains(t, err.Error(), config.MsgMissingURL)
}

func TestSync_BootstrapThenResume(t *testing.T) {
	home := isolate(t)
	ledger := &recordingFirefly{}
	server := httptest.NewServer(ledger)
	defer server.Close()

	markerPath := filepath.Join(home, "marker.txt")
	flags := []string{
		"-a", "1", "-f", "token", "-u", server.URL,
		"--marker-path", markerPath, "--quiet",
	}

	feedPath := writeFeed(t, home, 3)
	_, err := execute(t, "", append([]string{"sync", "--feed-file", feedPath}, flags...)...)
	require.NoError(t, err)
	assert.Empty(t, ledger.externalIDs())

	marker, err := os.ReadFile(markerPath)
	require.NoError(t, err)
	assert.Equal(t, "t3", string(marker))

	feedPath = writeFeed(t, home, 5)
	_, err = execute(t, "", append([]string{"--feed-file", feedPath}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"t4", "t5"}, ledger.externalIDs())

	marker, err = os.ReadFile(markerPath)
	require.NoError(t, err)
	assert.Equal(t, "t5", string(marker))
}

func TestSync_DryRunFromStdin(t *testing.T) {
	home := isolate(t)
	markerPath := filepath.Join(home, "marker.txt")
	require.NoError(t, os.WriteFile(markerPath, []byte("t1"), 0600))

	data, err := os.ReadFile(writeFeed(t, home, 3))
	require.NoError(t, err)

	out, err := execute(t, string(data), "sync", "-a", "1", "--feed-file", "-", "--dry-run", "--marker-path", markerPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Would push: 2")
	assert.Contains(t, out, "withdrawal")

	marker, err := os.ReadFile(markerPath)
	require.NoError(t, err)
	assert.Equal(t, "t1", string(marker))
}

func TestMarkerCommands_SQLite(t *testing.T) {
	home := isolate(t)
	dbPath := filepath.Join(home, "markers.db")
	base := []string{"--marker-backend", "sqlite", "--marker-path", dbPath, "-a", "42"}

	out, err := execute(t, "", append([]string{"marker", "show"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "No marker stored")

	_, err = execute(t, "", append([]string{"marker", "set", "leg-9"}, base...)...)
	require.NoError(t, err)

	out, err = execute(t, "", append([]string{"marker", "show"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "leg-9")

	out, err = execute(t, "n\n", append([]string{"marker", "reset"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Reset canceled")

	_, err = execute(t, "", append([]string{"marker", "reset", "--force"}, base...)...)
	require.NoError(t, err)

	out, err = execute(t, "", append([]string{"marker", "history"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "(reset)")
	assert.Contains(t, out, "leg-9")
}

func TestMarkerHistory_RequiresSQLite(t *testing.T) {
	home := isolate(t)

	_, err := execute(t, "", "marker", "history", "--marker-path", filepath.Join(home, "m.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "trsync dev\n", out)
}
