// Package conflict splits a batch of candidate rows into the rows that can
// be inserted and the rows that would violate a unique constraint, either
// against rows already stored or against an earlier row of the same batch.
package conflict

import (
	"context"
	"fmt"

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/schema"
)

// Filter partitions candidates into kept and conflicting, preserving their
// relative order. It issues one query per unique constraint of t, and none
// when t has no unique constraints or the batch is empty.
//
// Constraints are checked in order and the walk over them stops at the
// first clash. Every key checked before that point is taken, so a
// conflicting record still claims the keys of the constraints it passed.
// A key whose members are all NULL is compared like any other key.
func Filter[T any](ctx context.Context, q database.Querier, d database.Dialect, t *model.Table, candidates []T) (kept, conflicting []T, err error) {
	if len(candidates) == 0 {
		return []T{}, []T{}, nil
	}
	constraints := schema.UniqueConstraints(t)
	if len(constraints) == 0 {
		return candidates, []T{}, nil
	}

	records := make([]model.Record, len(candidates))
	for i, c := range candidates {
		if records[i], err = model.NewRecord(t, c); err != nil {
			return nil, nil, fmt.Errorf("candidate %d: %w", i, err)
		}
	}

	stored := make([]map[string]bool, len(constraints))
	for i, uc := range constraints {
		if stored[i], err = existingKeys(ctx, q, d, t, uc.Columns, records); err != nil {
			return nil, nil, err
		}
	}

	seen := make([]map[string]bool, len(constraints))
	for i := range seen {
		seen[i] = map[string]bool{}
	}

	kept = make([]T, 0, len(candidates))
	conflicting = []T{}
	for n, rec := range records {
		clash := false
		for i, uc := range constraints {
			key := tupleKey(t, uc.Columns, rec.Values(uc.Columns))
			if seen[i][key] || stored[i][key] {
				clash = true
				break
			}
			seen[i][key] = true
		}
		if clash {
			conflicting = append(conflicting, candidates[n])
			continue
		}
		kept = append(kept, candidates[n])
	}
	return kept, conflicting, nil
}

// existingKeys runs one batched lookup for the distinct key tuples of the
// batch and returns the keys already present in the table.
func existingKeys(ctx context.Context, q database.Querier, d database.Dialect, t *model.Table, cols []string, records []model.Record) (map[string]bool, error) {
	var tuples [][]any
	distinct := map[string]bool{}
	for _, rec := range records {
		vals := rec.Values(cols)
		k := tupleKey(t, cols, vals)
		if distinct[k] {
			continue
		}
		distinct[k] = true
		tuples = append(tuples, vals)
	}

	sql, args, err := database.Select(t.String(), d).
		Columns(cols...).
		WhereAnyOf(cols, tuples).
		Build()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("look up existing keys on %s: %w", t.Name, err)
	}
	found, err := database.ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("look up existing keys on %s: %w", t.Name, err)
	}

	out := make(map[string]bool, len(found))
	for _, row := range found {
		vals := make([]any, len(cols))
		for i, c := range cols {
			vals[i] = row[c]
		}
		out[tupleKey(t, cols, vals)] = true
	}
	return out, nil
}

// Process filters candidates, logs one warning per conflicting record and
// returns the records that are safe to insert.
func Process[T any](ctx context.Context, q database.Querier, d database.Dialect, t *model.Table, candidates []T, log logger.Sink) ([]T, error) {
	if log == nil {
		log = logger.Nop()
	}
	kept, conflicting, err := Filter(ctx, q, d, t, candidates)
	if err != nil {
		return nil, err
	}
	for _, c := range conflicting {
		log.Warnf("skipping record that conflicts with a unique constraint on %s: %s", t.Name, describe(t, c))
	}
	if len(conflicting) > 0 {
		log.Infof("%s: %d record(s) kept, %d conflicting", t.Name, len(kept), len(conflicting))
	}
	return kept, nil
}

func describe(t *model.Table, v any) string {
	rec, err := model.NewRecord(t, v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%v", rec.Map())
}
