package app

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"whalewatch/internal/storage"
)

// NarrativesList prints the most recently written narratives.
func (a *App) NarrativesList(ctx context.Context, limit int) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	items, err := c.narratives.Recent(ctx, limit)
	if err != nil {
		return err
	}
	return a.printNarratives(items)
}

// NarrativesSearch prints narratives matching query by name or address.
func (a *App) NarrativesSearch(ctx context.Context, query string, limit int) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	items, err := c.narratives.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	return a.printNarratives(items)
}

// NarrativesGet prints one narrative as JSON.
func (a *App) NarrativesGet(ctx context.Context, address string) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.narratives.Get(ctx, address)
	if err != nil {
		return fmt.Errorf("narrative %s: %w", address, err)
	}
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(n)
}

// Classify prints whether address is a wallet or a token.
func (a *App) Classify(ctx context.Context, address string) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.classifier.Classify(ctx, address)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("classification lookup failed")
	}
	fmt.Fprintf(a.Out, "%s\t%s\t%s\n", result.Address, result.Chain, result.Kind)
	return nil
}

func (a *App) printNarratives(items []storage.TokenNarrative) error {
	if len(items) == 0 {
		fmt.Fprintln(a.Out, "no narratives found")
		return nil
	}
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Updated (UTC)\tAddress\tName\tRisk\tSummary")
	for _, n := range items {
		risk := fmt.Sprintf("%.2f", n.RiskAssessment.RiskScore)
		if n.RiskAssessment.IsHighRisk {
			risk += " HIGH"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			n.UpdatedAt.UTC().Format(time.RFC3339),
			n.Address,
			sanitizeInline(n.Name),
			risk,
			sanitizeInline(n.ShortSummary),
		)
	}
	return writer.Flush()
}
