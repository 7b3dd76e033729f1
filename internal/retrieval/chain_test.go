package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/alert"
	"whalewatch/internal/storage"
)

const frogAlert = "A $FROG whale just bought $12.5K of $FROG at $340K MC https://screener.com/x"

type stubSource struct {
	name    string
	records []alert.RawRecord
	err     error
	calls   int
	lastQ   Query
	block   bool
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, q Query) ([]alert.RawRecord, error) {
	s.calls++
	s.lastQ = q
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.records, s.err
}

func legacyRecords(n int) []alert.RawRecord {
	recs := make([]alert.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, alert.RawRecord{
			Schema: alert.SchemaLegacy,
			Fields: map[string]string{
				"id":        fmt.Sprintf("legacy-%d", i),
				"username":  "oldbot",
				"content":   frogAlert,
				"timestamp": time.Date(2026, 1, 1, 0, 0, n-i, 0, time.UTC).Format(time.RFC3339),
			},
		})
	}
	return recs
}

func TestChainPrimaryErrorFallsBackToLegacy(t *testing.T) {
	derived := &stubSource{name: "derived"}
	primary := &stubSource{name: "primary", err: errors.New("relation does not exist")}
	legacy := &stubSource{name: "legacy", records: legacyRecords(4)}

	chain := NewChain(Options{}, zerolog.Nop(), derived, primary, legacy)
	got, err := chain.FetchRecent(context.Background(), Query{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, alert.NormalizeAll(legacy.records), got)
	assert.Len(t, got, 4)
	assert.Equal(t, 1, derived.calls)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, legacy.calls)
}

func TestChainStopsAtFirstUsableSource(t *testing.T) {
	derived := &stubSource{name: "derived", records: legacyRecords(2)}
	primary := &stubSource{name: "primary", records: legacyRecords(5)}

	chain := NewChain(Options{}, zerolog.Nop(), derived, primary)
	got, err := chain.FetchRecent(context.Background(), Query{Limit: 10})

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 0, primary.calls)
}

func TestChainSkipsSourceWithOnlyNoise(t *testing.T) {
	noise := []alert.RawRecord{{
		Schema: alert.SchemaCurrent,
		Fields: map[string]string{"id": "n", "content": "gm", "created_at": "2026-01-01T00:00:00Z"},
	}}
	primary := &stubSource{name: "primary", records: noise}
	legacy := &stubSource{name: "legacy", records: legacyRecords(1)}

	got, err := NewChain(Options{}, zerolog.Nop(), primary, legacy).FetchRecent(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "legacy-0", got[0].ID)
}

func TestChainEmptySuccessIsNotAnError(t *testing.T) {
	primary := &stubSource{name: "primary", err: errors.New("boom")}
	legacy := &stubSource{name: "legacy"}

	got, err := NewChain(Options{}, zerolog.Nop(), primary, legacy).FetchRecent(context.Background(), Query{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestChainAllSourcesFailed(t *testing.T) {
	a := &stubSource{name: "derived", err: errors.New("dial tcp: refused")}
	b := &stubSource{name: "primary", err: errors.New("timeout")}

	got, err := NewChain(Options{}, zerolog.Nop(), a, b).FetchRecent(context.Background(), Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Contains(t, err.Error(), "primary: timeout")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestChainNoSourcesFails(t *testing.T) {
	_, err := NewChain(Options{}, zerolog.Nop()).FetchRecent(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
}

func TestChainStepTimeoutMovesOn(t *testing.T) {
	hung := &stubSource{name: "derived", block: true}
	primary := &stubSource{name: "primary", records: legacyRecords(1)}

	chain := NewChain(Options{StepTimeout: 20 * time.Millisecond}, zerolog.Nop(), hung, primary)
	started := time.Now()
	got, err := chain.FetchRecent(context.Background(), Query{})

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Less(t, time.Since(started), time.Second)
}

func TestChainHonoursCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &stubSource{name: "primary", records: legacyRecords(1)}

	_, err := NewChain(Options{}, zerolog.Nop(), src).FetchRecent(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.calls)
}

func TestChainClampsLimit(t *testing.T) {
	src := &stubSource{name: "primary"}
	chain := NewChain(Options{DefaultLimit: 25, MaxLimit: 100}, zerolog.Nop(), src)

	_, _ = chain.FetchRecent(context.Background(), Query{Limit: 0, ChannelID: "c"})
	assert.Equal(t, Query{Limit: 25, ChannelID: "c"}, src.lastQ)

	_, _ = chain.FetchRecent(context.Background(), Query{Limit: 1000})
	assert.Equal(t, 100, src.lastQ.Limit)
	assert.Equal(t, []string{"primary"}, chain.Sources())
}

type fakeReader struct {
	schema alert.Schema
	q      storage.RecordQuery
}

func (f *fakeReader) ListRecentRecords(_ context.Context, schema alert.Schema, q storage.RecordQuery) ([]alert.RawRecord, error) {
	f.schema, f.q = schema, q
	return legacyRecords(1), nil
}

type fakeLister struct{ msgs []alert.RawAlertMessage }

func (f *fakeLister) Recent(_ context.Context, q storage.RecordQuery) ([]alert.RawAlertMessage, error) {
	return f.msgs, nil
}

func TestTableAndRecentSources(t *testing.T) {
	reader := &fakeReader{}
	table := NewTableSource("legacy", reader, alert.SchemaLegacy)
	recs, err := table.Fetch(context.Background(), Query{ChannelID: "x", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, alert.SchemaLegacy, reader.schema)
	assert.Equal(t, storage.RecordQuery{ChannelID: "x", Limit: 3}, reader.q)

	lister := &fakeLister{msgs: []alert.RawAlertMessage{{ID: "r1", Author: "bot", Content: frogAlert, Timestamp: time.Now()}}}
	recent := NewRecentSource("derived", lister)
	recs, err = recent.Fetch(context.Background(), Query{Limit: 3})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, alert.SchemaCurrent, recs[0].Schema)
	assert.Equal(t, "r1", recs[0].ID())
}
