package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"whalewatch/internal/alert"
	"whalewatch/internal/retrieval"
)

// Export renders recent whale activity as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

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
		a.Logger.Info().Msg("no whale activity found for export")
		return nil
	}

	series := chronological(activity)
	downsampled := downsampleActivity(series, opts.MaxPoints)
	a.Logger.Info().Int("total", len(series)).Int("exported", len(downsampled)).Msg("exporting whale activity")

	if opts.CSVPath != "" {
		if err := writeActivityCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if len(downsampled) < 2 {
			a.Logger.Warn().Int("points", len(downsampled)).Msg("chart needs at least two points; skipping png")
			return nil
		}
		if err := writeActivityPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func chronological(activity []alert.WhaleActivity) []alert.WhaleActivity {
	out := append([]alert.WhaleActivity(nil), activity...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out
}

func downsampleActivity(items []alert.WhaleActivity, max int) []alert.WhaleActivity {
	if max <= 0 || len(items) <= max {
		return items
	}
	if max == 1 {
		return items[len(items)-1:]
	}

	result := make([]alert.WhaleActivity, 0, max)
	step := float64(len(items)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}

func writeActivityCSV(path string, items []alert.WhaleActivity) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"observed_at", "id", "whale_label", "token_symbol", "buy_amount_usd", "market_cap_usd", "reporter", "source_url"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, item := range items {
		record := []string{
			item.ObservedAt.UTC().Format(time.RFC3339),
			item.ID,
			item.WhaleLabel,
			item.TokenSymbol,
			strconv.FormatFloat(item.BuyAmountUSD, 'f', -1, 64),
			strconv.FormatFloat(item.MarketCapUSD, 'f', -1, 64),
			item.Reporter,
			item.SourceURL,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeActivityPNG(path string, items []alert.WhaleActivity) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(items))
	buys := make([]float64, len(items))
	caps := make([]float64, len(items))

	for i, item := range items {
		x[i] = item.ObservedAt
		buys[i] = item.BuyAmountUSD
		caps[i] = item.MarketCapUSD
	}

	usdFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "$%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Buy amount (USD)",
			ValueFormatter: usdFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Market cap (USD)",
			ValueFormatter: usdFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Buy amount",
				XValues: x,
				YValues: buys,
			},
			chart.TimeSeries{
				Name:    "Market cap",
				XValues: x,
				YValues: caps,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
