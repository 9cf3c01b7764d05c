// Command eduadmin manages students, course schedules and per-lesson records
// from the command line, and runs periodic jobs with "serve".
package main

import (
	"context"
	"fmt"
	"os"

	"eduadmin/internal/app"

	"github.com/spf13/cobra"
)

var (
	cfgPath    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "eduadmin",
	Short:         "Course schedules and student records for a tutoring school",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	def := os.Getenv("EDUADMIN_CONFIG")
	if def == "" {
		def = "./config.json"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", def, "path to config (json or yaml; env EDUADMIN_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// withApp opens the app for a one-shot command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, cfgPath, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
