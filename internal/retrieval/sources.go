package retrieval

import (
	"context"

	"whalewatch/internal/alert"
	"whalewatch/internal/storage"
)

// TableSource reads one message table through a storage.RecordReader.
type TableSource struct {
	name   string
	reader storage.RecordReader
	schema alert.Schema
}

// NewTableSource reads the table matching schema.
func NewTableSource(name string, reader storage.RecordReader, schema alert.Schema) *TableSource {
	return &TableSource{name: name, reader: reader, schema: schema}
}

func (s *TableSource) Name() string { return s.name }

// Fetch lists the table newest first.
func (s *TableSource) Fetch(ctx context.Context, q Query) ([]alert.RawRecord, error) {
	return s.reader.ListRecentRecords(ctx, s.schema, storage.RecordQuery{ChannelID: q.ChannelID, Limit: q.Limit})
}

// MessageLister returns recently ingested raw messages.
type MessageLister interface {
	Recent(ctx context.Context, q storage.RecordQuery) ([]alert.RawAlertMessage, error)
}

// RecentSource derives activity from the messages most recently accepted
// by this process's ingestion sink.
type RecentSource struct {
	name   string
	lister MessageLister
}

// NewRecentSource wraps lister as a chain source.
func NewRecentSource(name string, lister MessageLister) *RecentSource {
	return &RecentSource{name: name, lister: lister}
}

func (s *RecentSource) Name() string { return s.name }

// Fetch converts recent messages to current-schema records.
func (s *RecentSource) Fetch(ctx context.Context, q Query) ([]alert.RawRecord, error) {
	msgs, err := s.lister.Recent(ctx, storage.RecordQuery{ChannelID: q.ChannelID, Limit: q.Limit})
	if err != nil {
		return nil, err
	}
	return recordsFromMessages(msgs), nil
}

func recordsFromMessages(msgs []alert.RawAlertMessage) []alert.RawRecord {
	records := make([]alert.RawRecord, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, alert.RecordFromMessage(msg))
	}
	return records
}

var (
	_ Source = (*TableSource)(nil)
	_ Source = (*RecentSource)(nil)
)
