package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whalewatch/internal/ingest"
)

// ErrRejected is returned when a submitted message fails the grammar.
var ErrRejected = errors.New("message rejected")

// Ingest submits one message through the ingestion sink.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	if strings.TrimSpace(opts.Text) == "" {
		return errors.New("--text is required")
	}

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if !c.sink.Durable() {
		a.Logger.Warn().Msg("no database configured; the message is validated but not persisted beyond this process")
	}

	res := c.sink.Submit(ctx, ingest.Submission{
		Text:      opts.Text,
		Author:    opts.Author,
		ChannelID: opts.ChannelID,
	})
	switch res.Status {
	case ingest.StatusStored:
		fmt.Fprintf(a.Out, "stored %s\n", res.MessageID)
		return nil
	case ingest.StatusSkipped:
		fmt.Fprintf(a.Out, "skipped: %s\n", res.Diagnostics.Reason())
		return ErrRejected
	default:
		return res.Err
	}
}

// Migrate applies the embedded schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot migrate")
	}
	defer closeStore()

	applied, err := store.Migrate(ctx)
	if err != nil {
		return err
	}
	for _, name := range applied {
		fmt.Fprintf(a.Out, "applied %s\n", name)
	}
	return nil
}
