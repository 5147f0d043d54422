package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/koustreak/dbkit/internal/app"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/report"
	"github.com/koustreak/dbkit/internal/validator"
)

var (
	validateTables  []string
	validateStrict  bool
	validateHalt    bool
	validateFormat  string
	validateArchive bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compare table models with the live database",
	Long: `Validate every declared table (or those named with --table) against
the live database and print the differences. With --strict the command
fails when any table differs. With --halt-on-error each differing table is
shown and the operator is asked whether to continue.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		format, err := report.ParseFormat(validateFormat)
		if err != nil {
			return err
		}
		strict := cfg.Validation.Strict
		if cmd.Flags().Changed("strict") {
			strict = validateStrict
		}
		halt := cfg.Validation.HaltOnError
		if cmd.Flags().Changed("halt-on-error") {
			halt = validateHalt
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		tables, err := a.SelectTables(validateTables)
		if err != nil {
			return err
		}

		if halt {
			return promptEach(ctx, a, tables)
		}
		return validateBatch(ctx, a, tables, strict, format)
	},
}

func validateBatch(ctx context.Context, a *app.App, tables []*model.Table, strict bool, format report.Format) error {
	started := time.Now()
	batch, verr := a.Validator.ValidateAll(ctx, tables, strict)
	if batch == nil {
		return verr
	}
	rep := report.New(batch, started, a.Meta())

	if err := report.Write(os.Stdout, format, rep, !color.NoColor); err != nil {
		return err
	}
	if validateArchive && a.Archiver != nil {
		if _, err := a.Archiver.Save(ctx, rep); err != nil {
			return fmt.Errorf("archive report: %w", err)
		}
	}
	return verr
}

// promptEach runs the interactive consistency check table by table and stops
// at the first table the operator refuses to continue past.
func promptEach(ctx context.Context, a *app.App, tables []*model.Table) error {
	opts := validator.PromptOptions{HaltOnError: true, In: os.Stdin, Out: os.Stdout}
	for _, t := range tables {
		ok, err := validator.ConsistencyCheck(ctx, a.Validator, t, opts)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(os.Stdout, "%s: ok\n", t.Name)
		}
	}
	return nil
}

func init() {
	validateCmd.Flags().StringSliceVarP(&validateTables, "table", "t", nil, "table to validate (repeatable, default all)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", true, "fail when any table differs (overrides validation.strict)")
	validateCmd.Flags().BoolVar(&validateHalt, "halt-on-error", false, "ask before continuing past a differing table")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "o", "text", "output format: text or json")
	validateCmd.Flags().BoolVar(&validateArchive, "archive", false, "store the report in the configured archive")
	rootCmd.AddCommand(validateCmd)
}
