// Command mrictl talks to the classification backend from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mri-console/internal/backend"
	"mri-console/internal/logging"
)

var (
	// Global flags
	apiURL  string
	timeout time.Duration
	verbose bool

	logger *zap.Logger
	out    io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "mrictl",
	Short: "Operator CLI for the MRI classification backend",
	Long: `mrictl uploads scans for classification and inspects the backend's
models, stored predictions, analytics and users.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		l, err := logging.New(level)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func newClient() (*backend.Client, error) {
	l := logger
	if l == nil {
		l = zap.NewNop()
	}
	return backend.New(apiURL, backend.WithTimeout(timeout), backend.WithLogger(l))
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("MRI_API_URL", "http://localhost:8000"), "Backend base URL (or set MRI_API_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	usersCmd.AddCommand(usersListCmd, usersCreateCmd, usersUpdateCmd, usersDeleteCmd)
	rootCmd.AddCommand(classifyCmd, modelsCmd, predictionsCmd, analyticsCmd, usersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
