package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"whalewatch/internal/alert"
	"whalewatch/internal/metrics"
	"whalewatch/internal/storage"
)

// ErrStore wraps durable write failures. Callers may retry the submission.
var ErrStore = errors.New("ingest: store message")

// Status is the terminal state of a submission.
type Status string

const (
	StatusStored      Status = "stored"
	StatusSkipped     Status = "skipped"
	StatusStoreFailed Status = "store_failed"
)

// Submission is an incoming alert before validation.
type Submission struct {
	Text        string
	Author      string
	ChannelID   string
	Attachments []alert.Attachment
	Embeds      []alert.Embed
}

// Result reports what happened to a submission. Skipped results carry the
// grammar diagnostics; StoreFailed results carry Err.
type Result struct {
	Status      Status
	MessageID   string
	Message     *alert.RawAlertMessage
	Diagnostics alert.Diagnostics
	Err         error
}

// Relay is told about every stored message.
type Relay interface {
	Relay(ctx context.Context, msg alert.RawAlertMessage) error
}

// Options wires the sink's collaborators. A nil Store selects the buffer.
type Options struct {
	Store   storage.MessageStore
	Buffer  *Buffer
	Relay   Relay
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() (string, error)
}

// Sink validates alerts and writes accepted ones to the primary table or,
// without a durable store, to the in-memory buffer.
type Sink struct {
	store   storage.MessageStore
	buffer  *Buffer
	relay   Relay
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() (string, error)
	logger  zerolog.Logger
}

// NewSink constructs a sink.
func NewSink(opts Options, logger zerolog.Logger) *Sink {
	s := &Sink{
		store:   opts.Store,
		buffer:  opts.Buffer,
		relay:   opts.Relay,
		metrics: opts.Metrics,
		now:     opts.Now,
		newID:   opts.NewID,
		logger:  logger.With().Str("component", "ingest_sink").Logger(),
	}
	if s.buffer == nil && s.store == nil {
		s.buffer = NewBuffer(DefaultBufferCapacity)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = newMessageID
	}
	return s
}

// Durable reports whether accepted messages go to the durable store.
func (s *Sink) Durable() bool {
	return s.store != nil
}

// Submit runs one message through Received → Validated → Stored, or ends
// it as Rejected or StoreFailed. It never retries.
func (s *Sink) Submit(ctx context.Context, sub Submission) Result {
	diag := alert.Validate(sub.Text)
	if !diag.Accepted() {
		missing := diag.Missing()
		for _, p := range missing {
			s.metrics.ObserveRejected(string(p))
		}
		s.metrics.ObserveIngest(string(StatusSkipped))
		s.logger.Info().Interface("missing", missing).Str("author", sub.Author).Msg("message rejected by whale alert grammar")
		return Result{Status: StatusSkipped, Diagnostics: diag}
	}

	id, err := s.newID()
	if err != nil {
		return s.storeFailed(diag, "", fmt.Errorf("%w: assign id: %v", ErrStore, err))
	}

	msg := alert.RawAlertMessage{
		ID:          id,
		Author:      authorOrDefault(sub.Author),
		Content:     sub.Text,
		ChannelID:   strings.TrimSpace(sub.ChannelID),
		Timestamp:   s.now(),
		Attachments: nonNil(sub.Attachments),
		Embeds:      nonNil(sub.Embeds),
	}

	if s.store != nil {
		if err := s.store.InsertMessage(ctx, msg); err != nil {
			return s.storeFailed(diag, id, fmt.Errorf("%w: %w", ErrStore, err))
		}
	} else {
		s.metrics.SetBufferSize(s.buffer.Push(msg))
	}

	s.metrics.ObserveIngest(string(StatusStored))
	s.logger.Info().Str("message_id", id).Bool("durable", s.store != nil).Msg("whale alert stored")

	if s.relay != nil {
		if err := s.relay.Relay(ctx, msg); err != nil {
			s.logger.Error().Err(err).Str("message_id", id).Msg("failed to relay stored alert")
		}
	}

	return Result{Status: StatusStored, MessageID: id, Message: &msg, Diagnostics: diag}
}

// Recent lists raw messages newest first from wherever the sink writes.
func (s *Sink) Recent(ctx context.Context, q storage.RecordQuery) ([]alert.RawAlertMessage, error) {
	if s.store != nil {
		return s.store.ListRecentMessages(ctx, q)
	}
	return s.buffer.Recent(q.ChannelID, q.Limit), nil
}

func (s *Sink) storeFailed(diag alert.Diagnostics, id string, err error) Result {
	s.metrics.ObserveIngest(string(StatusStoreFailed))
	s.logger.Error().Err(err).Str("message_id", id).Msg("failed to store whale alert")
	return Result{Status: StatusStoreFailed, MessageID: id, Diagnostics: diag, Err: err}
}

func newMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func authorOrDefault(author string) string {
	if a := strings.TrimSpace(author); a != "" {
		return a
	}
	return "unknown"
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
