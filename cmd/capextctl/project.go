package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"capext/internal/core"
	applog "capext/internal/log"
	"capext/internal/runs/memory"
	"capext/internal/services"

	"github.com/spf13/cobra"
)

type projectOptions struct {
	input        string
	date         string
	outDir       string
	skipExisting bool
	locale       string
	verbose      bool
}

func newProjectCmd() *cobra.Command {
	opts := &projectOptions{}
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Append every employee's latest capacity for a target month",
		Long: `Reads a semicolon separated roster (Nom;Capacité;Mois;Année;BU), adds one
row per employee dated the target month with their most recent capacity, and
writes the sorted result as modified_<input> in the output directory.`,
		Example: "  capextctl project --input roster.csv --date 2024-03-01 --out ./out",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "roster CSV to project")
	flags.StringVarP(&opts.date, "date", "d", "", "target date, YYYY-MM-DD or DD/MM/YYYY")
	flags.StringVarP(&opts.outDir, "out", "o", "", "output directory (default: the input's directory)")
	flags.BoolVar(&opts.skipExisting, "skip-existing", false, "do not add rows for employees already present in the target month")
	flags.StringVar(&opts.locale, "locale", envOr("COLLATION_LOCALE", "fr"), "collation locale used to sort names")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log projection details to stderr")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func runProject(cmd *cobra.Command, opts *projectOptions) error {
	target, err := parseTargetDate(opts.date)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	level := applog.ParseLevel("warn")
	if opts.verbose {
		level = applog.ParseLevel("debug")
	}
	logger := applog.New(applog.Config{Level: level, Component: applog.ComponentCLI, Output: cmd.ErrOrStderr()})

	svc := services.NewProjectionService(memory.New(1), nil, core.ParseCollation(opts.locale), logger)
	defer svc.Close()

	run, proj, err := svc.Project(cmd.Context(), services.ProjectionRequest{
		FileName:     filepath.Base(opts.input),
		Content:      strings.TrimPrefix(string(data), "\ufeff"),
		TargetDate:   target,
		SkipExisting: opts.skipExisting,
	})
	if err != nil {
		return err
	}

	outDir := opts.outDir
	if outDir == "" {
		outDir = filepath.Dir(opts.input)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	outPath := filepath.Join(outDir, run.OutputName)
	if err := os.WriteFile(outPath, []byte(run.Content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	printSummary(cmd.OutOrStdout(), outPath, proj)
	return nil
}

func printSummary(w io.Writer, outPath string, proj core.Projection) {
	fmt.Fprintf(w, "Wrote %s\n", outPath)
	fmt.Fprintf(w, "rows: %d  original: %d  added: %d  skipped: %d\n",
		proj.RowCount(), proj.OriginalCount, proj.AddedCount, len(proj.Skipped))
	for _, issue := range proj.Skipped {
		fmt.Fprintf(w, "  line %d (%s): %s\n", issue.Line, issue.Reason, issue.Raw)
	}
}

// parseTargetDate accepts the ISO form used by date pickers and the roster's
// own DD/MM/YYYY form.
func parseTargetDate(s string) (core.Date, error) {
	if d, err := core.ParseISODate(s); err == nil {
		return d, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid --date %q, use YYYY-MM-DD or DD/MM/YYYY: %w", s, err)
	}
	return d, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
