package engine

import "database/sql"

// Result holds the shaped output of an ad-hoc query (used by demctl
// inspect and debugging helpers; the stats service scans typed rows
// directly).
type Result struct {
	Columns  []string
	Rows     [][]any
	RowCount int
}

// ScanAll drains rows into a Result, converting byte slices to strings for
// serialization.
func ScanAll(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Result{Columns: cols, Rows: out, RowCount: len(out)}, nil
}
