package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mri-console/internal/classify"
	"mri-console/internal/format"
	"mri-console/internal/report"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify <image>",
	Short: "Upload a scan and print the reduced prediction",
	Long: `Uploads a JPG or PNG scan to the backend, reduces the returned class
probabilities and prints the top class, its confidence and every class score.

With --json the full report (severity and recommendations) is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print the report as JSON")
}

// detectContentType prefers the file extension and falls back to sniffing.
func detectContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	return http.DetectContentType(data)
}

func runClassify(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	contentType := detectContentType(path, data)
	if err := classify.CheckUpload(contentType, int64(len(data)), classify.DefaultMaxUploadBytes); err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	start := time.Now()
	probs, err := client.Predict(ctx, filepath.Base(path), contentType, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	if err := probs.Validate(); err != nil {
		return err
	}
	res, err := classify.Reduce(probs)
	if err != nil {
		return err
	}
	elapsed := float64(time.Since(start).Milliseconds())

	if classifyJSON {
		rep := report.Build(report.Input{
			Filename:     filepath.Base(path),
			ProcessingMS: &elapsed,
			ScannedAt:    start,
			Result:       res,
		}, time.Now())
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "File:\t%s\n", filepath.Base(path))
	fmt.Fprintf(w, "Prediction:\t%s (%s)\n", report.Label(res.TopClass), res.TopClass)
	fmt.Fprintf(w, "Confidence:\t%s\n", format.Percent(res.ConfidencePercent))
	fmt.Fprintf(w, "Severity:\t%s\n", report.SeverityOf(res.TopClass).Level)
	fmt.Fprintf(w, "Round trip:\t%s\n", format.Seconds(&elapsed))
	fmt.Fprintln(w, "Scores:\t")
	for _, c := range classify.KnownClasses {
		fmt.Fprintf(w, "  %s\t%s\n", report.Label(c), format.Percent(res.Scores.Of(c)))
	}
	return w.Flush()
}
