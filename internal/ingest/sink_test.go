package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/alert"
	"whalewatch/internal/metrics"
	"whalewatch/internal/storage"
)

const validAlert = "A $FROG whale just bought $12.5K of $FROG at $340K MC https://screener.com/x"

type fakeMessageStore struct {
	mu       sync.Mutex
	inserted []alert.RawAlertMessage
	err      error
}

func (f *fakeMessageStore) InsertMessage(_ context.Context, msg alert.RawAlertMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, msg)
	return nil
}

func (f *fakeMessageStore) ListRecentMessages(_ context.Context, q storage.RecordQuery) ([]alert.RawAlertMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]alert.RawAlertMessage, 0, len(f.inserted))
	for i := len(f.inserted) - 1; i >= 0 && len(out) < q.Limit; i-- {
		out = append(out, f.inserted[i])
	}
	return out, nil
}

type recordingRelay struct {
	relayed []string
	err     error
}

func (r *recordingRelay) Relay(_ context.Context, msg alert.RawAlertMessage) error {
	r.relayed = append(r.relayed, msg.ID)
	return r.err
}

func TestSinkSkipsInvalidMessage(t *testing.T) {
	store := &fakeMessageStore{}
	m := metrics.New("test")
	sink := NewSink(Options{Store: store, Metrics: m}, zerolog.Nop())

	res := sink.Submit(context.Background(), Submission{Text: "A $FROG whale just bought $12.5K of $FROG", Author: "bot"})

	assert.Equal(t, StatusSkipped, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.MessageID)
	assert.Equal(t, []alert.Predicate{alert.PredicateMarketCap, alert.PredicateSourceEvidence}, res.Diagnostics.Missing())
	assert.Empty(t, store.inserted)
}

func TestSinkStoresAcceptedMessage(t *testing.T) {
	store := &fakeMessageStore{}
	relay := &recordingRelay{}
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	sink := NewSink(Options{
		Store: store,
		Relay: relay,
		Now:   func() time.Time { return now },
	}, zerolog.Nop())

	res := sink.Submit(context.Background(), Submission{
		Text:        validAlert,
		Author:      "  whalebot ",
		ChannelID:   "chan-1",
		Attachments: []alert.Attachment{{URL: "https://cdn/x.png", ContentType: "image/png"}},
	})

	require.Equal(t, StatusStored, res.Status)
	require.NoError(t, res.Err)
	require.NotEmpty(t, res.MessageID)
	require.Len(t, store.inserted, 1)

	stored := store.inserted[0]
	assert.Equal(t, res.MessageID, stored.ID)
	assert.Equal(t, "whalebot", stored.Author)
	assert.Equal(t, "chan-1", stored.ChannelID)
	assert.Equal(t, now, stored.Timestamp)
	assert.NotNil(t, stored.Embeds)
	assert.Equal(t, []string{res.MessageID}, relay.relayed)
	assert.True(t, sink.Durable())
}

func TestSinkReportsStoreFailure(t *testing.T) {
	store := &fakeMessageStore{err: errors.New("connection refused")}
	relay := &recordingRelay{}
	sink := NewSink(Options{Store: store, Relay: relay}, zerolog.Nop())

	res := sink.Submit(context.Background(), Submission{Text: validAlert, Author: "bot"})

	assert.Equal(t, StatusStoreFailed, res.Status)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrStore)
	assert.Contains(t, res.Err.Error(), "connection refused")
	assert.Empty(t, relay.relayed)
}

func TestSinkRelayFailureDoesNotFailSubmission(t *testing.T) {
	relay := &recordingRelay{err: errors.New("telegram down")}
	sink := NewSink(Options{Store: &fakeMessageStore{}, Relay: relay}, zerolog.Nop())

	res := sink.Submit(context.Background(), Submission{Text: validAlert})
	assert.Equal(t, StatusStored, res.Status)
	assert.Equal(t, "unknown", res.Message.Author)
}

func TestSinkFallsBackToBufferWithoutStore(t *testing.T) {
	buf := NewBuffer(100)
	sink := NewSink(Options{Buffer: buf}, zerolog.Nop())
	assert.False(t, sink.Durable())

	for i := 0; i < 3; i++ {
		res := sink.Submit(context.Background(), Submission{Text: validAlert, ChannelID: "c"})
		require.Equal(t, StatusStored, res.Status)
	}
	sink.Submit(context.Background(), Submission{Text: "noise"})

	assert.Equal(t, 3, buf.Len())
	recent, err := sink.Recent(context.Background(), storage.RecordQuery{ChannelID: "c", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSinkAssignsUniqueTimeOrderedIDs(t *testing.T) {
	sink := NewSink(Options{}, zerolog.Nop())

	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 50; i++ {
		res := sink.Submit(context.Background(), Submission{Text: validAlert})
		require.Equal(t, StatusStored, res.Status)
		assert.False(t, seen[res.MessageID])
		assert.Greater(t, res.MessageID, prev)
		seen[res.MessageID] = true
		prev = res.MessageID
	}
}

func TestSinkIDFailureIsStoreFailed(t *testing.T) {
	sink := NewSink(Options{NewID: func() (string, error) { return "", errors.New("entropy") }}, zerolog.Nop())
	res := sink.Submit(context.Background(), Submission{Text: validAlert})
	assert.Equal(t, StatusStoreFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrStore)
}
