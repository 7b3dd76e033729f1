package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"

	"whalewatch/internal/alert"
	"whalewatch/internal/retrieval"
	"whalewatch/internal/scheduler"
)

const tailSeenSize = 4096

// Show prints recent whale activity through the retrieval chain.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	activity, err := c.chain.FetchRecent(ctx, retrieval.Query{ChannelID: opts.ChannelID, Limit: opts.Limit})
	if err != nil {
		return err
	}
	if len(activity) == 0 {
		fmt.Fprintln(a.Out, "no whale activity found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	writeActivityHeader(writer)
	for _, item := range activity {
		writeActivityRow(writer, item)
	}
	return writer.Flush()
}

// Tail polls the retrieval chain and prints activity not printed before.
func (a *App) Tail(ctx context.Context, opts TailOptions) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	poller, err := scheduler.New(scheduler.Options{
		Interval:  a.Config.Tail.Interval,
		Immediate: true,
		MaxPolls:  opts.MaxPolls,
	}, a.Logger)
	if err != nil {
		return err
	}

	seen, err := lru.New[string, struct{}](tailSeenSize)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	writeActivityHeader(writer)
	if err := writer.Flush(); err != nil {
		return err
	}

	err = poller.Run(ctx, func(ctx context.Context, _ time.Time) error {
		activity, err := c.chain.FetchRecent(ctx, retrieval.Query{ChannelID: opts.ChannelID, Limit: opts.Limit})
		if err != nil {
			return err
		}
		// oldest first so the stream reads top to bottom
		for i := len(activity) - 1; i >= 0; i-- {
			item := activity[i]
			if seen.Contains(item.ID) {
				continue
			}
			seen.Add(item.ID, struct{}{})
			writeActivityRow(writer, item)
		}
		return writer.Flush()
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func writeActivityHeader(w io.Writer) {
	fmt.Fprintln(w, "Observed (UTC)\tWhale\tToken\tBuy USD\tMarket Cap USD\tReporter\tSource")
}

func writeActivityRow(w io.Writer, item alert.WhaleActivity) {
	fmt.Fprintf(
		w,
		"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		item.ObservedAt.UTC().Format(time.RFC3339),
		sanitizeInline(item.WhaleLabel),
		item.TokenSymbol,
		formatUSD(item.BuyAmountUSD),
		formatUSD(item.MarketCapUSD),
		sanitizeInline(item.Reporter),
		item.SourceURL,
	)
}

func formatUSD(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(0)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
