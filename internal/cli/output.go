package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smartselect/shortlist/internal/client"
	"github.com/smartselect/shortlist/internal/model"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
}

func (a *app) printRecommendation(cmd *cobra.Command, c *client.Client, rec *model.Recommendation) error {
	if a.asJSON {
		return printJSON(cmd, rec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recommendations for: %s\n\n", rec.Label)
	items := c.Items()
	if len(items) == 0 {
		// Catalog refresh failed; fall back to what the query returned.
		for _, l := range rec.Items {
			items = append(items, model.CatalogItem{Laptop: l, Wishlisted: c.Wishlist.Contains(l.Model)})
		}
	}
	return a.printItems(cmd, items)
}

func (a *app) printItems(cmd *cobra.Command, items []model.CatalogItem) error {
	if a.asJSON {
		return printJSON(cmd, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no laptops to show")
		return nil
	}
	w := newTable(cmd)
	fmt.Fprintln(w, "\tID\tMODEL\tPRICE (INR)\tCPU\tGPU")
	for _, it := range items {
		mark := " "
		if it.Wishlisted {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, it.ID, it.Model, it.PriceINR, it.CPU, it.GPU)
	}
	return w.Flush()
}

func printLaptop(cmd *cobra.Command, it model.CatalogItem) {
	w := newTable(cmd)
	fmt.Fprintf(w, "model\t%s\n", it.Model)
	fmt.Fprintf(w, "id\t%s\n", it.ID)
	fmt.Fprintf(w, "price (INR)\t%s\n", it.PriceINR)
	fmt.Fprintf(w, "cpu\t%s\n", it.CPU)
	fmt.Fprintf(w, "ram\t%s\n", it.RAM)
	fmt.Fprintf(w, "storage\t%s\n", it.Storage)
	fmt.Fprintf(w, "gpu\t%s\n", it.GPU)
	fmt.Fprintf(w, "display\t%s\n", it.Display)
	fmt.Fprintf(w, "battery\t%s\n", it.Battery)
	fmt.Fprintf(w, "wishlisted\t%t\n", it.Wishlisted)
	if it.Rationale != "" {
		fmt.Fprintf(w, "why\t%s\n", it.Rationale)
	}
	_ = w.Flush()
}

func printComparison(cmd *cobra.Command, laptops []model.Laptop) {
	w := newTable(cmd)
	row := func(name string, get func(model.Laptop) string) {
		cells := make([]string, 0, len(laptops)+1)
		cells = append(cells, name)
		for _, l := range laptops {
			cells = append(cells, get(l))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	row("", func(l model.Laptop) string { return l.Model })
	row("price (INR)", func(l model.Laptop) string { return l.PriceINR })
	row("cpu", func(l model.Laptop) string { return l.CPU })
	row("ram", func(l model.Laptop) string { return l.RAM })
	row("storage", func(l model.Laptop) string { return l.Storage })
	row("gpu", func(l model.Laptop) string { return l.GPU })
	row("display", func(l model.Laptop) string { return l.Display })
	row("battery", func(l model.Laptop) string { return l.Battery })
	_ = w.Flush()
}

func printAnalysis(cmd *cobra.Command, r *model.ReviewAnalysis) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d reviews\n", r.ModelName, r.TotalReviews)
	if r.IsDummy {
		fmt.Fprintln(cmd.OutOrStdout(), "(sample data)")
	}

	platforms := make([]string, 0, len(r.PlatformStats))
	for p := range r.PlatformStats {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	w := newTable(cmd)
	if len(platforms) > 0 {
		fmt.Fprintln(w, "\nPLATFORM\tREVIEWS\tSCORE")
		for _, p := range platforms {
			s := r.PlatformStats[p]
			fmt.Fprintf(w, "%s\t%d\t%.2f\n", p, s.TotalReviews, s.SentimentScore)
		}
	}
	if rows := r.SentimentRows(); len(rows) > 0 {
		fmt.Fprintln(w, "\nGROUP\tPOSITIVE\tNEUTRAL\tNEGATIVE")
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", row.Group, row.Positive, row.Neutral, row.Negative)
		}
	}
	_ = w.Flush()
}
