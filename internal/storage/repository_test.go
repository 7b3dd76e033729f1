package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"whalewatch/internal/alert"
)

// setupTestStore starts a PostgreSQL container and applies the embedded migrations.
func setupTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applied, err := Migrate(ctx, pool)
	require.NoError(t, err)
	require.Len(t, applied, 3)

	return NewStore(pool), pool
}

func TestStore_UpsertNarrativeTwice(t *testing.T) {
	store, pool := setupTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertNarrative(ctx, TokenNarrative{
		Address:         "A1",
		Name:            "Frog",
		ImageReferences: []string{"https://img/1.png"},
		ShortSummary:    "first",
		BundleAnalysis:  BundleAnalysis{HolderCount: 10, IsValid: true, TotalPercentage: 40, AvgPercentage: 4},
		RiskAssessment:  RiskAssessment{RiskScore: 72, IsHighRisk: true},
	})
	require.NoError(t, err)

	second, err := store.UpsertNarrative(ctx, TokenNarrative{Address: "A1", Name: "Frog", ShortSummary: "second"})
	require.NoError(t, err)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM token_narratives WHERE address = 'A1'`).Scan(&count))
	assert.Equal(t, 1, count)

	got, err := store.GetNarrative(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.ShortSummary)
	assert.Empty(t, got.ImageReferences)
	assert.False(t, got.RiskAssessment.IsHighRisk)
	assert.Equal(t, first.CreatedAt.UTC(), second.CreatedAt.UTC())
}

func TestStore_SearchNarratives(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertNarrative(ctx, TokenNarrative{Address: "5f3K9abc", Name: "Musk_Coin"})
	require.NoError(t, err)
	_, err = store.UpsertNarrative(ctx, TokenNarrative{Address: "9zzz", Name: "MuskXCoin"})
	require.NoError(t, err)

	byName, err := store.SearchNarratives(ctx, SearchByName, "musk_", 10)
	require.NoError(t, err)
	require.Len(t, byName, 1, "underscore must match literally")
	assert.Equal(t, "5f3K9abc", byName[0].Address)

	byAddr, err := store.SearchNarratives(ctx, SearchByAddress, "F3k9", 10)
	require.NoError(t, err)
	require.Len(t, byAddr, 1)

	_, err = store.GetNarrative(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MessagesRoundTripAndLegacyRecords(t *testing.T) {
	store, pool := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i, channel := range []string{"alpha", "beta", "alpha"} {
		require.NoError(t, store.InsertMessage(ctx, alert.RawAlertMessage{
			ID:          "m" + string(rune('0'+i)),
			Author:      "bot",
			Content:     "A $FROG whale just bought $12.5K of $FROG at $340K MC https://screener.com/x",
			ChannelID:   channel,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Attachments: []alert.Attachment{{URL: "https://cdn/x.png", ContentType: "image/png"}},
		}))
	}

	msgs, err := store.ListRecentMessages(ctx, RecordQuery{ChannelID: "alpha", Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID)
	assert.Equal(t, "image/png", msgs[0].Attachments[0].ContentType)
	assert.Empty(t, msgs[0].Embeds)

	_, err = pool.Exec(ctx, `INSERT INTO discord_messages (username, content, "timestamp") VALUES ($1, $2, $3)`,
		"legacy", "The $OWL whale bought $2M of $OWL at $9M MC dexscreener.com", base)
	require.NoError(t, err)

	recs, err := store.ListRecentRecords(ctx, alert.SchemaLegacy, RecordQuery{Limit: 5})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "legacy", recs[0].Author())

	activity := alert.NormalizeAll(recs)
	require.Len(t, activity, 1)
	assert.Equal(t, "OWL", activity[0].TokenSymbol)
}

func TestStoreWithoutPool(t *testing.T) {
	var store *Store
	_, err := store.GetNarrative(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, store.InsertMessage(context.Background(), alert.RawAlertMessage{}), ErrNotConfigured)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}

func TestPresizeBoundsPreallocation(t *testing.T) {
	assert.Equal(t, 0, presize(-1))
	assert.Equal(t, 50, presize(50))
	assert.Equal(t, maxPresize, presize(2_000_000_000))
}
