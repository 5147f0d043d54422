// Package validator compares declared table models with the tables that
// actually exist in a database and reports every structural difference.
//
// One call runs existence check, live extraction, declared extraction and
// diff. The result is either returned for inspection or, in strict mode,
// turned into an *errs.Error that lists every discrepancy.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/schema"
)

// Result is the outcome of validating one table.
type Result struct {
	Table       string        `json:"table"`
	Valid       bool          `json:"valid"`
	TableExists bool          `json:"table_exists"`
	Errors      []string      `json:"errors"`
	Model       *schema.Table `json:"orm_info,omitempty"`
	Database    *schema.Table `json:"db_info,omitempty"`

	// Error is set when validation could not run at all (batch mode only).
	Error string `json:"error,omitempty"`
}

// BatchResult collects per-table results of ValidateAll.
type BatchResult struct {
	AllValid bool               `json:"all_valid"`
	Results  map[string]*Result `json:"results"`

	// Tables lists the keys of Results in input order.
	Tables []string `json:"tables"`
}

// Failed returns the failed results in input order.
func (b *BatchResult) Failed() []*Result {
	var out []*Result
	for _, name := range b.Tables {
		if r := b.Results[name]; !r.Valid {
			out = append(out, r)
		}
	}
	return out
}

// Validator validates declared models against one live database.
type Validator struct {
	in     schema.Introspector
	schema string
	mode   schema.CompareMode
	log    logger.Sink
}

// Option configures a Validator.
type Option func(*Validator)

// WithSchema sets the database schema used for models that do not name one.
func WithSchema(name string) Option {
	return func(v *Validator) { v.schema = name }
}

// WithCompareMode selects full (default) or minimal column comparison.
func WithCompareMode(m schema.CompareMode) Option {
	return func(v *Validator) { v.mode = m }
}

// WithLogger sets the log sink. The default discards everything.
func WithLogger(l logger.Sink) Option {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// New creates a Validator reading live structure through in.
func New(in schema.Introspector, opts ...Option) *Validator {
	v := &Validator{in: in, mode: schema.CompareFull, log: logger.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) schemaFor(t *model.Table) string {
	if t.Schema != "" {
		return t.Schema
	}
	return v.schema
}

func notFoundMessage(t *model.Table) string {
	return fmt.Sprintf("table %q not found in database", t.Name)
}

// Check validates one table and always reports discrepancies through the
// Result. The error is non-nil only when the live database could not be
// read.
func (v *Validator) Check(ctx context.Context, t *model.Table) (*Result, error) {
	res := &Result{Table: t.Name, Errors: []string{}}
	schemaName := v.schemaFor(t)

	exists, err := v.in.TableExists(ctx, schemaName, t.Name)
	if err != nil {
		return nil, fmt.Errorf("check table %s: %w", t.Name, err)
	}
	if !exists {
		res.Errors = append(res.Errors, notFoundMessage(t))
		return res, nil
	}
	res.TableExists = true

	live, err := schema.FromDatabase(ctx, v.in, schemaName, t.Name, v.log)
	if err != nil {
		return nil, err
	}
	declared := schema.FromModel(t)

	res.Model = declared
	res.Database = live
	if diffs := schema.DiffWith(declared, live, v.mode); len(diffs) > 0 {
		res.Errors = diffs
	}
	res.Valid = len(res.Errors) == 0
	return res, nil
}

// Validate validates one table. In strict mode a missing table returns a
// NotFound error and any discrepancy returns a Validation error; the Result
// is returned alongside either way.
func (v *Validator) Validate(ctx context.Context, t *model.Table, strict bool) (*Result, error) {
	log := v.tableLog(t.Name)

	res, err := v.Check(ctx, t)
	if err != nil {
		log.Errorf("schema validation of %s failed: %v", t.Name, err)
		return nil, err
	}

	switch {
	case !res.TableExists:
		log.Errorf("%s", res.Errors[0])
		if strict {
			return res, errs.New(errs.ErrKindNotFound, res.Errors[0])
		}
	case !res.Valid:
		log.Warnf("table %s does not match its model: %d difference(s)", t.Name, len(res.Errors))
		for _, e := range res.Errors {
			log.Debugf("  %s", e)
		}
		if strict {
			return res, errs.New(errs.ErrKindValidation, mismatchMessage(res))
		}
	default:
		log.Infof("table %s matches its model", t.Name)
	}
	return res, nil
}

func mismatchMessage(res *Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "table %s does not match its model, %d error(s):", res.Table, len(res.Errors))
	for _, e := range res.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(e)
	}
	return sb.String()
}

// ValidateAll validates every table without stopping at the first failure.
// A table whose live structure cannot be read is recorded as invalid with
// Error set. In strict mode a single Validation error listing
// "<table>: <error>" for every failure is returned after all tables ran.
func (v *Validator) ValidateAll(ctx context.Context, tables []*model.Table, strict bool) (*BatchResult, error) {
	batch := &BatchResult{AllValid: true, Results: make(map[string]*Result, len(tables))}

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return batch, errs.Wrap(errs.ErrKindTimeout, "batch validation interrupted", err)
		}
		res, err := v.Validate(ctx, t, false)
		if err != nil {
			res = &Result{Table: t.Name, Errors: []string{}, Error: err.Error()}
		}
		if _, dup := batch.Results[t.Name]; !dup {
			batch.Tables = append(batch.Tables, t.Name)
		}
		batch.Results[t.Name] = res
		if !res.Valid {
			batch.AllValid = false
		}
	}

	v.log.Infof("validated %d table(s), %d failed", len(batch.Tables), len(batch.Failed()))

	if strict && !batch.AllValid {
		return batch, errs.New(errs.ErrKindValidation, batchMessage(batch))
	}
	return batch, nil
}

func batchMessage(b *BatchResult) string {
	var lines []string
	for _, r := range b.Failed() {
		if r.Error != "" {
			lines = append(lines, r.Table+": "+r.Error)
		}
		for _, e := range r.Errors {
			lines = append(lines, r.Table+": "+e)
		}
	}
	return fmt.Sprintf("%d of %d table(s) failed schema validation:\n  %s",
		len(b.Failed()), len(b.Tables), strings.Join(lines, "\n  "))
}

func (v *Validator) tableLog(table string) logger.Sink {
	if l, ok := v.log.(*logger.Logger); ok {
		return l.Table(table)
	}
	return v.log
}
