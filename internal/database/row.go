package database

// ScanRows reads all rows from the result set and returns them as a slice
// of maps, where each key is the column name and each value is the Go-native
// representation of the DB value.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows.
func ScanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errQuery("failed to read column names", err)
	}

	result := make([]map[string]any, 0)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errQuery("failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = nativeValue(dest[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errQuery("error during row iteration", err)
	}

	return result, nil
}

// ScanRow reads a single row and returns it as a map.
// Scan errors are returned as-is so drivers can report not-found.
func ScanRow(row Row, columns []string) (map[string]any, error) {
	dest := make([]any, len(columns))
	destPtrs := make([]any, len(columns))
	for i := range dest {
		destPtrs[i] = &dest[i]
	}

	if err := row.Scan(destPtrs...); err != nil {
		return nil, err
	}

	result := make(map[string]any, len(columns))
	for i, col := range columns {
		result[col] = nativeValue(dest[i])
	}
	return result, nil
}

// nativeValue copies driver-owned byte slices into strings; MySQL returns
// text columns as []byte when scanning into *any.
func nativeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
