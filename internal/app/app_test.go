package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/alert"
	"whalewatch/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Name: "whalewatch"},
		Ingest:     config.IngestConfig{BufferCapacity: 100},
		Retrieval:  config.RetrievalConfig{StepTimeout: time.Second, RequestTimeout: 2 * time.Second, DefaultLimit: 50, MaxLimit: 200},
		Narratives: config.NarrativesConfig{LRUSize: 16, SearchPageSize: 10, MaxPageSize: 50},
		Tail:       config.TailConfig{Interval: 5 * time.Millisecond},
		Export:     config.ExportConfig{MaxPoints: 1000},
	}
}

func newTestApp(cfg *config.Config) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &out
	return a, &out
}

// derivedPeer serves n whale alerts from GET /api/messages/recent.
func derivedPeer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msgs := make([]alert.RawAlertMessage, 0, n)
		for i := n - 1; i >= 0; i-- {
			msgs = append(msgs, alert.RawAlertMessage{
				ID:        fmt.Sprintf("m-%d", i),
				Author:    "whalebot",
				Content:   fmt.Sprintf("A $FROG whale just bought $%dK of $FROG at $340K MC https://dexscreener.com/x", 10+i),
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": msgs})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestShowWithoutActivity(t *testing.T) {
	a, out := newTestApp(testConfig())
	require.NoError(t, a.Show(context.Background(), ShowOptions{Limit: 10}))
	assert.Equal(t, "no whale activity found\n", out.String())
}

func TestShowFromDerivedEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Retrieval.DerivedURL = derivedPeer(t, 3).URL
	a, out := newTestApp(cfg)

	require.NoError(t, a.Show(context.Background(), ShowOptions{Limit: 10}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Buy USD")
	assert.Contains(t, lines[1], "12000")
	assert.Contains(t, lines[1], "340000")
}

func TestIngestValidatesMessage(t *testing.T) {
	a, out := newTestApp(testConfig())

	err := a.Ingest(context.Background(), IngestOptions{Text: "gm"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, out.String(), "skipped")

	out.Reset()
	err = a.Ingest(context.Background(), IngestOptions{Text: "A $FROG whale just bought $12.5K of $FROG at $340K MC birdeye.so"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "stored "))

	assert.Error(t, a.Ingest(context.Background(), IngestOptions{Text: "  "}))
}

func TestExportWritesCSVAndPNG(t *testing.T) {
	cfg := testConfig()
	cfg.Retrieval.DerivedURL = derivedPeer(t, 5).URL
	a, _ := newTestApp(cfg)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "activity.csv")
	pngPath := filepath.Join(dir, "out", "activity.png")
	require.NoError(t, a.Export(context.Background(), ExportOptions{CSVPath: csvPath, PNGPath: pngPath, MaxPoints: 3}))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "observed_at", rows[0][0])
	assert.Equal(t, "m-0", rows[1][1])
	assert.Equal(t, "m-4", rows[3][1])
	assert.Equal(t, "10000", rows[1][4])

	info, err := os.Stat(pngPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportRequiresOutput(t *testing.T) {
	a, _ := newTestApp(testConfig())
	assert.Error(t, a.Export(context.Background(), ExportOptions{}))
}

func TestDownsampleActivity(t *testing.T) {
	items := make([]alert.WhaleActivity, 10)
	for i := range items {
		items[i] = alert.WhaleActivity{ID: fmt.Sprint(i)}
	}
	got := downsampleActivity(items, 4)
	require.Len(t, got, 4)
	assert.Equal(t, "0", got[0].ID)
	assert.Equal(t, "9", got[3].ID)
	assert.Len(t, downsampleActivity(items, 20), 10)
	assert.Equal(t, "9", downsampleActivity(items, 1)[0].ID)
}

func TestTailPrintsEachActivityOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Retrieval.DerivedURL = derivedPeer(t, 2).URL
	a, out := newTestApp(cfg)

	require.NoError(t, a.Tail(context.Background(), TailOptions{Limit: 10, MaxPolls: 3}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "10000")
	assert.Contains(t, lines[2], "11000")
}

func TestNarrativesAndClassifyWithoutDatabase(t *testing.T) {
	a, out := newTestApp(testConfig())
	ctx := context.Background()

	require.NoError(t, a.NarrativesList(ctx, 5))
	assert.Equal(t, "no narratives found\n", out.String())

	out.Reset()
	require.NoError(t, a.NarrativesSearch(ctx, "MUSK", 5))
	assert.Equal(t, "no narratives found\n", out.String())

	assert.Error(t, a.NarrativesGet(ctx, "missing"))

	out.Reset()
	require.NoError(t, a.Classify(ctx, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v\tsolana\tunknown\n", out.String())
}

func TestMigrateRequiresDatabase(t *testing.T) {
	a, _ := newTestApp(testConfig())
	assert.Error(t, a.Migrate(context.Background()))
}
