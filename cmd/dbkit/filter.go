package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/koustreak/dbkit/internal/conflict"
	"github.com/koustreak/dbkit/internal/crud"
	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
)

var (
	filterTable     string
	filterInput     string
	filterOutput    string
	filterConflicts string
	filterInsert    string
	filterChunk     int
	filterMapping   string
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Drop records that would violate a unique constraint",
	Long: `Read a JSON array of records for one table, drop every record whose
unique key already exists in the table or repeats an earlier record, and
write the remaining records as JSON. With --insert the remaining records
are bulk inserted instead (mode: plain, ignore or replace).

--mapping names a YAML file that renames input fields to columns and
converts their values (int, float, bool, str, datetime, decimal, json)
before any key is compared.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		records, err := readRecords(filterInput)
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.Table(filterTable)
		if err != nil {
			return err
		}

		if records, err = mapRecords(filterMapping, t, records, a.Log); err != nil {
			return err
		}

		kept, conflicting, err := conflict.Filter(ctx, a.DB, a.DB.Dialect(), t, records)
		if err != nil {
			return err
		}
		for _, rec := range conflicting {
			a.Log.Warnf("conflicting record skipped: %v", rec)
		}
		a.Log.Infof("%s: %d record(s) kept, %d conflicting", t.Name, len(kept), len(conflicting))

		if filterConflicts != "" {
			if err := writeRecords(filterConflicts, conflicting); err != nil {
				return err
			}
		}

		if filterInsert == "" {
			return writeRecords(filterOutput, kept)
		}

		repo := crud.New(a.DB, a.Log)
		var n int64
		switch filterInsert {
		case "plain":
			n, err = repo.BulkInsert(ctx, t, crud.Items(kept), filterChunk)
		case "ignore":
			n, err = repo.BulkInsertIgnore(ctx, t, crud.Items(kept), filterChunk)
		case "replace":
			n, err = repo.BulkReplace(ctx, t, crud.Items(kept), filterChunk)
		default:
			return errs.Newf(errs.ErrKindInvalidInput, "unknown insert mode %q", filterInsert)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) written to %s\n", n, t.String())
		return nil
	},
}

// readRecords decodes a JSON array of objects. Whole numbers become int64
// so they bind to integer columns on every driver.
func readRecords(path string) ([]map[string]any, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "open records", err)
		}
		defer f.Close()
		r = f
	}
	return decodeRecords(r)
}

// mapRecords applies the field mapping at path, if any, to records.
func mapRecords(path string, t *model.Table, records []map[string]any, log logger.Sink) ([]map[string]any, error) {
	if path == "" {
		return records, nil
	}
	m, err := model.LoadMapping(path)
	if err != nil {
		return nil, err
	}
	if err := m.CheckTable(t); err != nil {
		return nil, err
	}
	return m.CoerceAll(records, log)
}

func decodeRecords(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "decode records", err)
	}
	for _, rec := range raw {
		for k, v := range rec {
			if n, ok := v.(json.Number); ok {
				rec[k] = numberValue(n)
			}
		}
	}
	return raw, nil
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func writeRecords(path string, records []map[string]any) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "create output", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func init() {
	filterCmd.Flags().StringVarP(&filterTable, "table", "t", "", "table the records belong to")
	filterCmd.Flags().StringVarP(&filterInput, "input", "i", "-", "JSON file with an array of records (- for stdin)")
	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "-", "where to write kept records (- for stdout)")
	filterCmd.Flags().StringVar(&filterConflicts, "conflicts", "", "also write conflicting records to this file")
	filterCmd.Flags().StringVar(&filterInsert, "insert", "", "insert kept records instead of printing them: plain, ignore or replace")
	filterCmd.Flags().StringVar(&filterMapping, "mapping", "", "YAML field mapping applied to every record")
	filterCmd.Flags().IntVar(&filterChunk, "chunk", crud.DefaultChunkSize, "rows per INSERT statement")
	_ = filterCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(filterCmd)
}
