// Package crud provides generic, dialect-aware CRUD helpers over any
// declared table: chunked bulk inserts with ignore / replace semantics and
// simple equality-filtered selects, updates, deletes and counts.
package crud

import (
	"context"
	"fmt"
	"sort"

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/schema"
)

// DefaultChunkSize is the number of rows written per INSERT statement.
const DefaultChunkSize = 3000

// Repository runs CRUD statements against one database.
type Repository struct {
	db  database.DB
	log logger.Sink
}

// New creates a Repository. A nil log discards messages.
func New(db database.DB, log logger.Sink) *Repository {
	if log == nil {
		log = logger.Nop()
	}
	return &Repository{db: db, log: log}
}

// Items converts a typed slice into the []any the bulk helpers accept.
func Items[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// BulkInsert inserts objects in chunks inside one transaction and returns
// the number of rows written. Any unique violation aborts the whole batch.
func (r *Repository) BulkInsert(ctx context.Context, t *model.Table, objects []any, chunk int) (int64, error) {
	return r.bulk(ctx, t, objects, chunk, database.ConflictError)
}

// BulkInsertIgnore is BulkInsert that silently skips rows colliding with a
// primary key or unique constraint.
func (r *Repository) BulkInsertIgnore(ctx context.Context, t *model.Table, objects []any, chunk int) (int64, error) {
	return r.bulk(ctx, t, objects, chunk, database.ConflictIgnore)
}

// BulkReplace is BulkInsert that overwrites colliding rows. Postgres needs
// a primary key to target; a table without one is a Configuration error.
func (r *Repository) BulkReplace(ctx context.Context, t *model.Table, objects []any, chunk int) (int64, error) {
	return r.bulk(ctx, t, objects, chunk, database.ConflictReplace)
}

func (r *Repository) bulk(ctx context.Context, t *model.Table, objects []any, chunk int, mode database.ConflictMode) (int64, error) {
	if len(objects) == 0 {
		r.log.Warnf("%s: nothing to write", t.Name)
		return 0, nil
	}
	if chunk <= 0 {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "chunk size must be positive, got %d", chunk)
	}

	records := make([]model.Record, len(objects))
	for i, o := range objects {
		rec, err := model.NewRecord(t, o)
		if err != nil {
			return 0, fmt.Errorf("%s: record %d: %w", t.Name, i, err)
		}
		records[i] = rec
	}

	var total int64
	err := database.WithTx(ctx, r.db, func(tx database.Tx) error {
		for start := 0; start < len(records); start += chunk {
			end := min(start+chunk, len(records))
			sql, args, err := r.insertStatement(t, records[start:end], mode)
			if err != nil {
				return err
			}
			res, err := tx.Exec(ctx, sql, args...)
			if err != nil {
				return err
			}
			total += res.RowsAffected
			r.log.Infof("%s: processed %d/%d records", t.Name, end, len(records))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *Repository) insertStatement(t *model.Table, records []model.Record, mode database.ConflictMode) (string, []any, error) {
	cols := unionColumns(t, records)
	if len(cols) == 0 {
		return "", nil, errs.Newf(errs.ErrKindInvalidInput, "%s: records carry no known columns", t.Name)
	}
	b := database.Insert(t.String(), r.db.Dialect()).Columns(cols...)
	for _, rec := range records {
		b.Values(rec.Values(cols)...)
	}
	if mode != database.ConflictError {
		b.OnConflict(mode, t.PrimaryKey(), keyColumns(t))
	}
	return b.Build()
}

// unionColumns lists, in table order, every column any record carries.
func unionColumns(t *model.Table, records []model.Record) []string {
	present := map[string]bool{}
	for _, rec := range records {
		for _, c := range rec.Columns() {
			present[c] = true
		}
	}
	var cols []string
	for _, c := range t.ColumnNames() {
		if present[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// keyColumns is the primary key plus every column of a unique constraint.
func keyColumns(t *model.Table) []string {
	set := map[string]bool{}
	for _, c := range t.PrimaryKey() {
		set[c] = true
	}
	for _, uc := range schema.UniqueConstraints(t) {
		for _, c := range uc.Columns {
			set[c] = true
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// InsertOne inserts one object and returns the generated id when the
// driver reports one, otherwise the number of rows written.
func (r *Repository) InsertOne(ctx context.Context, t *model.Table, obj any) (int64, error) {
	rec, err := model.NewRecord(t, obj)
	if err != nil {
		return 0, err
	}
	sql, args, err := r.insertStatement(t, []model.Record{rec}, database.ConflictError)
	if err != nil {
		return 0, err
	}
	res, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	r.log.Infof("%s: inserted 1 record", t.Name)
	if res.LastInsertID != 0 {
		return res.LastInsertID, nil
	}
	return res.RowsAffected, nil
}

// SelectAll returns rows of t. limit and offset are ignored when <= 0.
func (r *Repository) SelectAll(ctx context.Context, t *model.Table, limit, offset int) ([]map[string]any, error) {
	return r.SelectByConditions(ctx, t, nil, limit, offset)
}

// SelectByID returns the row whose single-column primary key equals id, or
// nil when there is none.
func (r *Repository) SelectByID(ctx context.Context, t *model.Table, id any) (map[string]any, error) {
	pk, err := singlePrimaryKey(t)
	if err != nil {
		return nil, err
	}
	rows, err := r.SelectByConditions(ctx, t, map[string]any{pk: id}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		r.log.Warnf("%s: no record with %s = %v", t.Name, pk, id)
		return nil, nil
	}
	return rows[0], nil
}

// SelectByConditions returns rows matching every condition (column =
// value, nil matching NULL). Unknown columns are rejected.
func (r *Repository) SelectByConditions(ctx context.Context, t *model.Table, conditions map[string]any, limit, offset int) ([]map[string]any, error) {
	cols, err := conditionColumns(t, conditions)
	if err != nil {
		return nil, err
	}
	b := database.Select(t.String(), r.db.Dialect()).
		Columns(t.ColumnNames()...).
		WhereEq(cols, conditions)
	for _, pk := range t.PrimaryKey() {
		b.OrderBy(pk, database.Asc)
	}
	if limit > 0 {
		b.Limit(limit)
	}
	if offset > 0 {
		b.Offset(offset)
	}
	sql, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out, err := database.ScanRows(rows)
	if err != nil {
		return nil, err
	}
	r.log.Debugf("%s: selected %d record(s)", t.Name, len(out))
	return out, nil
}

// UpdateByID sets data on the row with the given primary key value.
func (r *Repository) UpdateByID(ctx context.Context, t *model.Table, id any, data map[string]any) (int64, error) {
	pk, err := singlePrimaryKey(t)
	if err != nil {
		return 0, err
	}
	return r.UpdateByConditions(ctx, t, map[string]any{pk: id}, data)
}

// UpdateByConditions sets data on every row matching conditions.
func (r *Repository) UpdateByConditions(ctx context.Context, t *model.Table, conditions, data map[string]any) (int64, error) {
	where, err := conditionColumns(t, conditions)
	if err != nil {
		return 0, err
	}
	set, err := conditionColumns(t, data)
	if err != nil {
		return 0, err
	}
	b := database.Update(t.String(), r.db.Dialect())
	for _, c := range set {
		v, err := model.Normalize(data[c])
		if err != nil {
			return 0, errs.Wrap(errs.ErrKindInvalidInput, "column "+c, err)
		}
		b.Set(c, v)
	}
	for _, c := range where {
		b.Where(c, conditions[c])
	}
	return r.exec(ctx, t, "updated", b)
}

// DeleteByID removes the row with the given primary key value.
func (r *Repository) DeleteByID(ctx context.Context, t *model.Table, id any) (int64, error) {
	pk, err := singlePrimaryKey(t)
	if err != nil {
		return 0, err
	}
	return r.DeleteByConditions(ctx, t, map[string]any{pk: id})
}

// DeleteByConditions removes every row matching conditions. Empty
// conditions are rejected rather than emptying the table.
func (r *Repository) DeleteByConditions(ctx context.Context, t *model.Table, conditions map[string]any) (int64, error) {
	where, err := conditionColumns(t, conditions)
	if err != nil {
		return 0, err
	}
	b := database.Delete(t.String(), r.db.Dialect())
	for _, c := range where {
		b.Where(c, conditions[c])
	}
	return r.exec(ctx, t, "deleted", b)
}

type builder interface {
	Build() (string, []any, error)
}

func (r *Repository) exec(ctx context.Context, t *model.Table, verb string, b builder) (int64, error) {
	sql, args, err := b.Build()
	if err != nil {
		return 0, err
	}
	res, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	r.log.Infof("%s: %s %d record(s)", t.Name, verb, res.RowsAffected)
	return res.RowsAffected, nil
}

// Count returns the number of rows matching conditions; nil counts all.
func (r *Repository) Count(ctx context.Context, t *model.Table, conditions map[string]any) (int64, error) {
	cols, err := conditionColumns(t, conditions)
	if err != nil {
		return 0, err
	}
	sql, args, err := database.Select(t.String(), r.db.Dialect()).Count().WhereEq(cols, conditions).Build()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ExecRaw runs a caller-supplied statement.
func (r *Repository) ExecRaw(ctx context.Context, sql string, args ...any) (database.Result, error) {
	res, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return database.Result{}, err
	}
	r.log.Debugf("raw statement affected %d row(s)", res.RowsAffected)
	return res, nil
}

// conditionColumns returns the keys of m, sorted, after checking that each
// is a column of t.
func conditionColumns(t *model.Table, m map[string]any) ([]string, error) {
	cols := make([]string, 0, len(m))
	for c := range m {
		if !t.HasColumn(c) {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "table %s has no column %q", t.Name, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func singlePrimaryKey(t *model.Table) (string, error) {
	pk := t.PrimaryKey()
	switch len(pk) {
	case 1:
		return pk[0], nil
	case 0:
		return "", errs.Newf(errs.ErrKindConfiguration, "table %s has no primary key", t.Name)
	default:
		return "", errs.Newf(errs.ErrKindConfiguration, "table %s has a composite primary key", t.Name)
	}
}
