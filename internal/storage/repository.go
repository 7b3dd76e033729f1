package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"whalewatch/internal/alert"
)

const (
	insertMessageSQL = `INSERT INTO whale_messages (
        id,
        author_username,
        content,
        channel_id,
        attachments,
        embeds,
        created_at
    ) VALUES (
        $1,$2,$3,NULLIF($4, ''),$5,$6,$7
    );`

	listRecentMessagesSQL = `SELECT
        id,
        author_username,
        content,
        channel_id,
        attachments,
        embeds,
        created_at
    FROM whale_messages
    WHERE ($1 = '' OR channel_id = $1)
    ORDER BY created_at DESC
    LIMIT $2;`

	listLegacyMessagesSQL = `SELECT
        id::text,
        username,
        content,
        channel_id,
        "timestamp"
    FROM discord_messages
    WHERE ($1 = '' OR channel_id = $1)
    ORDER BY "timestamp" DESC
    LIMIT $2;`

	narrativeColumns = `address,
        name,
        image_description,
        image_references,
        full_analysis,
        short_summary,
        bundle_analysis,
        risk_assessment,
        created_at,
        updated_at`

	upsertNarrativeSQL = `INSERT INTO token_narratives (
        address,
        name,
        image_description,
        image_references,
        full_analysis,
        short_summary,
        bundle_analysis,
        risk_assessment
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (address) DO UPDATE
    SET
        name              = EXCLUDED.name,
        image_description = EXCLUDED.image_description,
        image_references  = EXCLUDED.image_references,
        full_analysis     = EXCLUDED.full_analysis,
        short_summary     = EXCLUDED.short_summary,
        bundle_analysis   = EXCLUDED.bundle_analysis,
        risk_assessment   = EXCLUDED.risk_assessment,
        updated_at        = now()
    RETURNING ` + narrativeColumns + `;`

	getNarrativeSQL = `SELECT ` + narrativeColumns + `
    FROM token_narratives
    WHERE address = $1;`

	listRecentNarrativesSQL = `SELECT ` + narrativeColumns + `
    FROM token_narratives
    ORDER BY updated_at DESC, created_at DESC
    LIMIT $1;`

	searchNarrativesByAddressSQL = `SELECT ` + narrativeColumns + `
    FROM token_narratives
    WHERE address ILIKE $1 ESCAPE '\'
    ORDER BY updated_at DESC, created_at DESC
    LIMIT $2;`

	searchNarrativesByNameSQL = `SELECT ` + narrativeColumns + `
    FROM token_narratives
    WHERE name ILIKE $1 ESCAPE '\'
    ORDER BY updated_at DESC, created_at DESC
    LIMIT $2;`
)

// SearchField selects the narrative column a search matches against.
type SearchField int

const (
	SearchByName SearchField = iota
	SearchByAddress
)

func (f SearchField) String() string {
	if f == SearchByAddress {
		return "address"
	}
	return "name"
}

// MessageStore persists accepted alert messages in the primary table.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg alert.RawAlertMessage) error
	ListRecentMessages(ctx context.Context, q RecordQuery) ([]alert.RawAlertMessage, error)
}

// RecordReader reads raw records from either message table shape.
type RecordReader interface {
	ListRecentRecords(ctx context.Context, schema alert.Schema, q RecordQuery) ([]alert.RawRecord, error)
}

// NarrativeStore defines token narrative persistence.
type NarrativeStore interface {
	UpsertNarrative(ctx context.Context, n TokenNarrative) (TokenNarrative, error)
	GetNarrative(ctx context.Context, address string) (TokenNarrative, error)
	ListRecentNarratives(ctx context.Context, limit int) ([]TokenNarrative, error)
	SearchNarratives(ctx context.Context, field SearchField, query string, limit int) ([]TokenNarrative, error)
}

// Store aggregates access to messages and narratives.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertMessage writes an accepted message to whale_messages.
func (s *Store) InsertMessage(ctx context.Context, msg alert.RawAlertMessage) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	attachments, err := marshalList(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	embeds, err := marshalList(msg.Embeds)
	if err != nil {
		return fmt.Errorf("marshal embeds: %w", err)
	}

	_, execErr := pool.Exec(ctx, insertMessageSQL,
		msg.ID,
		msg.Author,
		msg.Content,
		msg.ChannelID,
		attachments,
		embeds,
		msg.Timestamp,
	)
	if execErr != nil {
		return fmt.Errorf("insert message: %w", execErr)
	}
	return nil
}

// ListRecentMessages lists whale_messages newest first.
func (s *Store) ListRecentMessages(ctx context.Context, q RecordQuery) ([]alert.RawAlertMessage, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentMessagesSQL, q.ChannelID, q.Limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent messages: %w", queryErr)
	}
	defer rows.Close()

	messages := make([]alert.RawAlertMessage, 0, presize(q.Limit))
	for rows.Next() {
		msg, scanErr := scanMessage(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		messages = append(messages, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return messages, nil
}

// ListRecentRecords reads raw records from the table matching schema.
func (s *Store) ListRecentRecords(ctx context.Context, schema alert.Schema, q RecordQuery) ([]alert.RawRecord, error) {
	switch schema {
	case alert.SchemaCurrent:
		messages, err := s.ListRecentMessages(ctx, q)
		if err != nil {
			return nil, err
		}
		records := make([]alert.RawRecord, 0, len(messages))
		for _, msg := range messages {
			records = append(records, alert.RecordFromMessage(msg))
		}
		return records, nil
	case alert.SchemaLegacy:
		return s.listLegacyRecords(ctx, q)
	default:
		return nil, fmt.Errorf("list recent records: unsupported schema %s", schema)
	}
}

func (s *Store) listLegacyRecords(ctx context.Context, q RecordQuery) ([]alert.RawRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listLegacyMessagesSQL, q.ChannelID, q.Limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list legacy messages: %w", queryErr)
	}
	defer rows.Close()

	records := make([]alert.RawRecord, 0, presize(q.Limit))
	for rows.Next() {
		var (
			id, username, content string
			channel               sql.NullString
			ts                    time.Time
		)
		if err := rows.Scan(&id, &username, &content, &channel, &ts); err != nil {
			return nil, err
		}
		fields := map[string]string{
			"id":        id,
			"username":  username,
			"content":   content,
			"timestamp": ts.UTC().Format(time.RFC3339Nano),
		}
		if channel.Valid {
			fields["channel_id"] = channel.String
		}
		records = append(records, alert.RawRecord{Schema: alert.SchemaLegacy, Fields: fields})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// UpsertNarrative inserts or fully replaces the narrative for an address.
func (s *Store) UpsertNarrative(ctx context.Context, n TokenNarrative) (TokenNarrative, error) {
	pool, err := s.getPool()
	if err != nil {
		return TokenNarrative{}, err
	}
	if strings.TrimSpace(n.Address) == "" {
		return TokenNarrative{}, ErrInvalidInput
	}

	bundle, err := json.Marshal(n.BundleAnalysis)
	if err != nil {
		return TokenNarrative{}, fmt.Errorf("marshal bundle analysis: %w", err)
	}
	risk, err := json.Marshal(n.RiskAssessment)
	if err != nil {
		return TokenNarrative{}, fmt.Errorf("marshal risk assessment: %w", err)
	}
	refs := n.ImageReferences
	if refs == nil {
		refs = []string{}
	}

	row := pool.QueryRow(ctx, upsertNarrativeSQL,
		n.Address,
		n.Name,
		n.ImageDescription,
		refs,
		n.FullAnalysis,
		n.ShortSummary,
		bundle,
		risk,
	)
	stored, scanErr := scanNarrative(row)
	if scanErr != nil {
		return TokenNarrative{}, fmt.Errorf("upsert narrative: %w", scanErr)
	}
	return stored, nil
}

// GetNarrative returns the narrative for address or ErrNotFound.
func (s *Store) GetNarrative(ctx context.Context, address string) (TokenNarrative, error) {
	pool, err := s.getPool()
	if err != nil {
		return TokenNarrative{}, err
	}

	n, scanErr := scanNarrative(pool.QueryRow(ctx, getNarrativeSQL, address))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return TokenNarrative{}, ErrNotFound
		}
		return TokenNarrative{}, fmt.Errorf("get narrative: %w", scanErr)
	}
	return n, nil
}

// ListRecentNarratives lists narratives most recently written first.
func (s *Store) ListRecentNarratives(ctx context.Context, limit int) ([]TokenNarrative, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentNarrativesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent narratives: %w", queryErr)
	}
	return collectNarratives(rows, limit)
}

// SearchNarratives matches query as a case-insensitive substring of field.
func (s *Store) SearchNarratives(ctx context.Context, field SearchField, query string, limit int) ([]TokenNarrative, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	stmt := searchNarrativesByNameSQL
	if field == SearchByAddress {
		stmt = searchNarrativesByAddressSQL
	}

	rows, queryErr := pool.Query(ctx, stmt, "%"+escapeLike(query)+"%", limit)
	if queryErr != nil {
		return nil, fmt.Errorf("search narratives by %s: %w", field, queryErr)
	}
	return collectNarratives(rows, limit)
}

func collectNarratives(rows pgx.Rows, limit int) ([]TokenNarrative, error) {
	defer rows.Close()

	narratives := make([]TokenNarrative, 0, presize(limit))
	for rows.Next() {
		n, err := scanNarrative(rows)
		if err != nil {
			return nil, err
		}
		narratives = append(narratives, n)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return narratives, nil
}

func scanNarrative(row pgx.Row) (TokenNarrative, error) {
	var (
		n      TokenNarrative
		bundle []byte
		risk   []byte
	)
	if err := row.Scan(
		&n.Address,
		&n.Name,
		&n.ImageDescription,
		&n.ImageReferences,
		&n.FullAnalysis,
		&n.ShortSummary,
		&bundle,
		&risk,
		&n.CreatedAt,
		&n.UpdatedAt,
	); err != nil {
		return TokenNarrative{}, err
	}
	if len(bundle) > 0 {
		if err := json.Unmarshal(bundle, &n.BundleAnalysis); err != nil {
			return TokenNarrative{}, fmt.Errorf("decode bundle analysis: %w", err)
		}
	}
	if len(risk) > 0 {
		if err := json.Unmarshal(risk, &n.RiskAssessment); err != nil {
			return TokenNarrative{}, fmt.Errorf("decode risk assessment: %w", err)
		}
	}
	if n.ImageReferences == nil {
		n.ImageReferences = []string{}
	}
	return n, nil
}

func scanMessage(rows pgx.Rows) (alert.RawAlertMessage, error) {
	var (
		msg         alert.RawAlertMessage
		channel     sql.NullString
		attachments []byte
		embeds      []byte
	)
	if err := rows.Scan(
		&msg.ID,
		&msg.Author,
		&msg.Content,
		&channel,
		&attachments,
		&embeds,
		&msg.Timestamp,
	); err != nil {
		return alert.RawAlertMessage{}, err
	}
	if channel.Valid {
		msg.ChannelID = channel.String
	}
	if err := unmarshalList(attachments, &msg.Attachments); err != nil {
		return alert.RawAlertMessage{}, fmt.Errorf("decode attachments: %w", err)
	}
	if err := unmarshalList(embeds, &msg.Embeds); err != nil {
		return alert.RawAlertMessage{}, fmt.Errorf("decode embeds: %w", err)
	}
	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}

func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func unmarshalList[T any](raw []byte, out *[]T) error {
	if len(raw) == 0 {
		*out = []T{}
		return nil
	}
	return json.Unmarshal(raw, out)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const maxPresize = 256

// presize bounds slice preallocation by a caller-supplied limit.
func presize(limit int) int {
	if limit < 0 {
		return 0
	}
	return min(limit, maxPresize)
}

func escapeLike(v string) string {
	return likeEscaper.Replace(v)
}

var (
	_ MessageStore   = (*Store)(nil)
	_ RecordReader   = (*Store)(nil)
	_ NarrativeStore = (*Store)(nil)
)
