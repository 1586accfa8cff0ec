package driver

import (
	"github.com/jackc/pgx/v5/pgconn"
)

// Result holds the outcome of one executed statement: the command tag,
// column names and text-format row values. A nil cell value is SQL NULL.
type Result struct {
	Tag    string
	Fields []string
	Rows   [][][]byte

	rowsAffected int64
}

// IsEmpty reports whether the result contains no rows.
func (r *Result) IsEmpty() bool {
	return r == nil || len(r.Rows) == 0
}

// RowCount returns the number of rows in the result.
func (r *Result) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// RowsAffected returns the number of rows affected by the statement.
func (r *Result) RowsAffected() int64 {
	if r == nil {
		return 0
	}
	return r.rowsAffected
}

// Get returns the text value at the given row for the named column.
// The second return is false when the column does not exist or the
// value is NULL.
func (r *Result) Get(row int, column string) (string, bool) {
	if r == nil || row < 0 || row >= len(r.Rows) {
		return "", false
	}
	for i, f := range r.Fields {
		if f == column {
			v := r.Rows[row][i]
			if v == nil {
				return "", false
			}
			return string(v), true
		}
	}
	return "", false
}

// newResult converts a pgconn result, copying row data so the Result
// stays valid after the reader advances.
func newResult(pr *pgconn.Result) *Result {
	res := &Result{
		Tag:          pr.CommandTag.String(),
		rowsAffected: pr.CommandTag.RowsAffected(),
	}
	if len(pr.FieldDescriptions) > 0 {
		res.Fields = make([]string, len(pr.FieldDescriptions))
		for i, fd := range pr.FieldDescriptions {
			res.Fields[i] = fd.Name
		}
	}
	if len(pr.Rows) > 0 {
		res.Rows = make([][][]byte, len(pr.Rows))
		for i, row := range pr.Rows {
			cells := make([][]byte, len(row))
			for j, cell := range row {
				if cell != nil {
					cells[j] = append([]byte(nil), cell...)
				}
			}
			res.Rows[i] = cells
		}
	}
	return res
}

// newRowResult builds a single-row Result from a streaming reader's
// current row, copying values before the reader moves on.
func newRowResult(fields []pgconn.FieldDescription, values [][]byte) *Result {
	res := &Result{
		Fields: make([]string, len(fields)),
		Rows:   make([][][]byte, 1),
	}
	for i, fd := range fields {
		res.Fields[i] = fd.Name
	}
	cells := make([][]byte, len(values))
	for j, cell := range values {
		if cell != nil {
			cells[j] = append([]byte(nil), cell...)
		}
	}
	res.Rows[0] = cells
	res.rowsAffected = 1
	return res
}
