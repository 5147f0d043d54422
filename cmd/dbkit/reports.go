package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/report"
)

var (
	reportsLimit  int
	reportsFormat string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse archived validation reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived reports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Archiver == nil {
			return errs.New(errs.ErrKindConfiguration, "no report archive configured (reports.endpoint)")
		}

		objects, err := a.Archiver.List(ctx, reportsLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, o := range objects {
			fmt.Fprintf(out, "%s  %8d  %s\n", o.LastModified.Format("2006-01-02 15:04:05"), o.Size, o.Key)
		}
		return nil
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Print one archived report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		format, err := report.ParseFormat(reportsFormat)
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Archiver == nil {
			return errs.New(errs.ErrKindConfiguration, "no report archive configured (reports.endpoint)")
		}

		rep, err := a.Archiver.Load(ctx, args[0])
		if err != nil {
			return err
		}
		return report.Write(cmd.OutOrStdout(), format, rep, !color.NoColor)
	},
}

func init() {
	reportsListCmd.Flags().IntVarP(&reportsLimit, "limit", "n", 20, "maximum number of reports (0 for all)")
	reportsShowCmd.Flags().StringVarP(&reportsFormat, "format", "o", "text", "output format: text or json")
	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd)
	rootCmd.AddCommand(reportsCmd)
}
