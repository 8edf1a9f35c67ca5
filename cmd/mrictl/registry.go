package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mri-console/internal/format"
	"mri-console/internal/registry"
)

var (
	predClass  string
	predSearch string
	predLimit  int
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List model files known to the backend",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "List stored predictions",
	Long: `Lists stored predictions with per-class totals. --search matches the
prediction id or filename (case-insensitive); --class keeps one class.
Totals always cover every fetched prediction.`,
	Args: cobra.NoArgs,
	RunE: runPredictions,
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show backend analytics",
	Args:  cobra.NoArgs,
	RunE:  runAnalytics,
}

func init() {
	predictionsCmd.Flags().StringVar(&predClass, "class", registry.AllClasses, "Only show this class")
	predictionsCmd.Flags().StringVar(&predSearch, "search", "", "Filter by id or filename")
	predictionsCmd.Flags().IntVar(&predLimit, "limit", 200, "Maximum predictions to fetch")
}

func runModels(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	models, err := client.Models(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED\tSTATUS")
	for _, m := range registry.Models(models) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Name, m.Size, m.ModifiedAt, m.Status)
	}
	return w.Flush()
}

func runPredictions(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	recs, err := client.Predictions(ctx, predLimit)
	if err != nil {
		return err
	}
	matched := registry.Filter{Query: predSearch, Class: predClass}.Apply(recs)
	stats := registry.Summarize(recs)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tDATE\tPREDICTION\tCONFIDENCE\tTIME")
	for _, r := range registry.Rows(matched) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, orPlaceholder(r.Filename), r.ScanDate, orPlaceholder(r.Prediction), r.Confidence, r.ProcessingTime)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d of %d shown. Total %d, NonDemented %d, VeryMild %d, Mild %d, Moderate %d\n",
		len(matched), len(recs), stats.Total, stats.NonDemented, stats.VeryMildDemented, stats.MildDemented, stats.ModerateDemented)
	return nil
}

func orPlaceholder(s string) string {
	if s == "" {
		return format.Placeholder
	}
	return s
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := client.Analytics(ctx)
	if err != nil {
		return err
	}
	users := format.Placeholder
	if a.ActiveUsers != nil {
		users = fmt.Sprint(*a.ActiveUsers)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total predictions:\t%d\n", a.TotalPredictions)
	fmt.Fprintf(w, "Average confidence:\t%s\n", format.PercentPtr(a.AvgConfidence))
	fmt.Fprintf(w, "Active users:\t%s\n", users)
	fmt.Fprintf(w, "Average processing:\t%s\n", format.Seconds(a.AvgProcessingMS))
	return w.Flush()
}
