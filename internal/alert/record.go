package alert

import "time"

// Schema tags which stored table shape a raw record came from.
type Schema int

const (
	// SchemaCurrent is the whale_messages shape: author_username, content, created_at.
	SchemaCurrent Schema = iota + 1
	// SchemaLegacy is the discord_messages shape: username, content, timestamp.
	SchemaLegacy
)

func (s Schema) String() string {
	switch s {
	case SchemaCurrent:
		return "current"
	case SchemaLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// RawRecord is a stored message before normalization. Fields holds column
// values keyed by column name; nested keys are joined with a dot.
type RawRecord struct {
	Schema Schema
	Fields map[string]string
	Embeds []Embed
}

type fieldCandidates struct {
	id        []string
	author    []string
	content   []string
	timestamp []string
}

// Candidates are tried in order; the first non-empty value wins.
var schemaFields = map[Schema]fieldCandidates{
	SchemaCurrent: {
		id:        []string{"id"},
		author:    []string{"author_username", "author.username", "username"},
		content:   []string{"content"},
		timestamp: []string{"created_at", "timestamp"},
	},
	SchemaLegacy: {
		id:        []string{"id", "message_id"},
		author:    []string{"username", "author.username", "author_username"},
		content:   []string{"content"},
		timestamp: []string{"timestamp", "created_at"},
	},
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (r RawRecord) lookup(candidates []string) string {
	for _, name := range candidates {
		if v, ok := r.Fields[name]; ok && v != "" {
			return v
		}
	}
	return ""
}

// ID returns the record identifier.
func (r RawRecord) ID() string { return r.lookup(schemaFields[r.Schema].id) }

// Author returns the reporting username.
func (r RawRecord) Author() string { return r.lookup(schemaFields[r.Schema].author) }

// Content returns the raw alert text.
func (r RawRecord) Content() string { return r.lookup(schemaFields[r.Schema].content) }

// Timestamp parses the record's creation time.
func (r RawRecord) Timestamp() (time.Time, bool) {
	raw := r.lookup(schemaFields[r.Schema].timestamp)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// RecordFromMessage wraps an ingested message as a current-schema record.
func RecordFromMessage(m RawAlertMessage) RawRecord {
	fields := map[string]string{
		"id":              m.ID,
		"author_username": m.Author,
		"content":         m.Content,
	}
	if m.ChannelID != "" {
		fields["channel_id"] = m.ChannelID
	}
	if !m.Timestamp.IsZero() {
		fields["created_at"] = m.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return RawRecord{Schema: SchemaCurrent, Fields: fields, Embeds: m.Embeds}
}
