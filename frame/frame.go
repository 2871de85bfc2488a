// Copyright 2026 The golim Authors

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package frame implements the result table of a data request: named float64
// columns indexed by date, in ascending date order. Missing cells are NaN.
package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"

	"github.com/golim/golim/db"
)

// Frame stores numeric columns indexed by date. The dates are always sorted
// in ascending order. A Frame is tagged with the query text that produced it
// for provenance.
type Frame struct {
	query   string
	columns []string // column order as declared by the query
	dates   []db.Date
	data    map[string][]float64 // column -> values aligned with dates
}

// New creates an empty Frame with the given columns and dates, all cells NaN.
func New(columns []string, dates []db.Date) *Frame {
	f := &Frame{
		columns: append([]string{}, columns...),
		dates:   append([]db.Date{}, dates...),
		data:    make(map[string][]float64),
	}
	for _, c := range f.columns {
		vals := make([]float64, len(f.dates))
		for i := range vals {
			vals[i] = math.NaN()
		}
		f.data[c] = vals
	}
	return f
}

// NewFromRows creates a Frame from row-major values: one slice per date, each
// of the column count length.
func NewFromRows(columns []string, dates []db.Date, rows [][]float64) (*Frame, error) {
	if len(rows) != len(dates) {
		return nil, errors.Reason("number of rows [%d] != number of dates [%d]",
			len(rows), len(dates))
	}
	f := New(columns, dates)
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.Reason("row %d has %d values, expected %d",
				i, len(row), len(columns))
		}
		for j, c := range columns {
			f.data[c][i] = row[j]
		}
	}
	return f, nil
}

// FromRecord restores a Frame from its serialized form.
func FromRecord(r *db.FrameRecord) (*Frame, error) {
	if len(r.Data) != len(r.Columns) {
		return nil, errors.Reason("record has %d data columns, expected %d",
			len(r.Data), len(r.Columns))
	}
	f := New(r.Columns, r.Dates)
	f.query = r.Query
	for i, c := range r.Columns {
		if len(r.Data[i]) != len(r.Dates) {
			return nil, errors.Reason("column '%s' has %d values, expected %d",
				c, len(r.Data[i]), len(r.Dates))
		}
		copy(f.data[c], r.Data[i])
	}
	return f, nil
}

// Record returns the serialized form of the Frame.
func (f *Frame) Record() *db.FrameRecord {
	r := &db.FrameRecord{
		Query:   f.query,
		Columns: append([]string{}, f.columns...),
		Dates:   append([]db.Date{}, f.dates...),
		Data:    make([][]float64, len(f.columns)),
	}
	for i, c := range f.columns {
		r.Data[i] = append([]float64{}, f.data[c]...)
	}
	return r
}

// Query returns the query text that produced the Frame.
func (f *Frame) Query() string { return f.query }

// SetQuery tags the Frame with the query text that produced it.
func (f *Frame) SetQuery(q string) { f.query = q }

// Columns of the Frame, in declaration order.
func (f *Frame) Columns() []string { return f.columns }

// Dates of the Frame, ascending.
func (f *Frame) Dates() []db.Date { return f.dates }

// NumRows is the number of dates in the Frame.
func (f *Frame) NumRows() int { return len(f.dates) }

// Empty is true when the Frame has no rows or no columns.
func (f *Frame) Empty() bool {
	return len(f.dates) == 0 || len(f.columns) == 0
}

// Column returns the values of the named column aligned with Dates, or nil
// when no such column exists. The slice is not a copy.
func (f *Frame) Column(name string) []float64 { return f.data[name] }

// Value returns the cell at the given row for the named column. Out of range
// or unknown columns yield NaN.
func (f *Frame) Value(row int, column string) float64 {
	vals, ok := f.data[column]
	if !ok || row < 0 || row >= len(vals) {
		return math.NaN()
	}
	return vals[row]
}

// Check verifies the Frame invariants: dates strictly ascending and every
// column aligned with the dates.
func (f *Frame) Check() error {
	for i := 1; i < len(f.dates); i++ {
		if !f.dates[i-1].Before(f.dates[i]) {
			return errors.Reason("dates[%d] = %s >= dates[%d] = %s",
				i-1, f.dates[i-1], i, f.dates[i])
		}
	}
	for _, c := range f.columns {
		if len(f.data[c]) != len(f.dates) {
			return errors.Reason("column '%s' has %d values, expected %d",
				c, len(f.data[c]), len(f.dates))
		}
	}
	return nil
}

// Rename renames columns in place according to the mapping; columns not in
// the mapping keep their names.
func (f *Frame) Rename(names map[string]string) {
	for i, c := range f.columns {
		n, ok := names[c]
		if !ok || n == c {
			continue
		}
		f.columns[i] = n
		f.data[n] = f.data[c]
		delete(f.data, c)
	}
}

// Select returns a new Frame restricted to the given columns, in the given
// order. It fails when a column does not exist.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	sel := New(columns, f.dates)
	sel.query = f.query
	for _, c := range columns {
		vals, ok := f.data[c]
		if !ok {
			return nil, errors.Reason("no such column: '%s'", c)
		}
		copy(sel.data[c], vals)
	}
	return sel, nil
}

// AddColumn appends a new column with values aligned with Dates.
func (f *Frame) AddColumn(name string, values []float64) error {
	if _, ok := f.data[name]; ok {
		return errors.Reason("column '%s' already exists", name)
	}
	if len(values) != len(f.dates) {
		return errors.Reason("column '%s' has %d values, expected %d",
			name, len(values), len(f.dates))
	}
	f.columns = append(f.columns, name)
	f.data[name] = append([]float64{}, values...)
	return nil
}

func (f *Frame) dateIndex() map[db.Date]int {
	m := make(map[db.Date]int, len(f.dates))
	for i, d := range f.dates {
		m[d] = i
	}
	return m
}

// Merge combines the Frame with a freshly fetched one: the result has the
// union of dates and columns, and for every cell the fresh Frame wins
// whenever it carries both the date and the column; otherwise the old value
// is kept. The receiver is not modified. The result keeps the receiver's
// query tag.
func (f *Frame) Merge(fresh *Frame) *Frame {
	columns := append([]string{}, f.columns...)
	for _, c := range fresh.columns {
		if !slices.Contains(columns, c) {
			columns = append(columns, c)
		}
	}
	dates := append([]db.Date{}, f.dates...)
	oldIdx := f.dateIndex()
	for _, d := range fresh.dates {
		if _, ok := oldIdx[d]; !ok {
			dates = append(dates, d)
		}
	}
	slices.SortFunc(dates, func(a, b db.Date) bool { return a.Before(b) })

	merged := New(columns, dates)
	merged.query = f.query
	freshIdx := fresh.dateIndex()
	for _, c := range columns {
		_, inFresh := fresh.data[c]
		for i, d := range dates {
			if inFresh {
				if j, ok := freshIdx[d]; ok {
					merged.data[c][i] = fresh.data[c][j]
					continue
				}
			}
			if j, ok := oldIdx[d]; ok {
				if vals, ok := f.data[c]; ok {
					merged.data[c][i] = vals[j]
				}
			}
		}
	}
	return merged
}

// DropEmptyRows returns a new Frame without the rows where every column is
// NaN.
func (f *Frame) DropEmptyRows() *Frame {
	var keep []int
	for i := range f.dates {
		for _, c := range f.columns {
			if !math.IsNaN(f.data[c][i]) {
				keep = append(keep, i)
				break
			}
		}
	}
	dates := make([]db.Date, len(keep))
	for n, i := range keep {
		dates[n] = f.dates[i]
	}
	res := New(f.columns, dates)
	res.query = f.query
	for _, c := range f.columns {
		for n, i := range keep {
			res.data[c][n] = f.data[c][i]
		}
	}
	return res
}

// ResampleMonthStart groups rows by calendar month and replaces each group
// with a single row indexed by the 1st of the month, valued at the mean of
// the group's non-NaN cells per column.
func (f *Frame) ResampleMonthStart() *Frame {
	var months []db.Date
	groups := make(map[db.Date][]int)
	for i, d := range f.dates {
		m := d.MonthStart()
		if _, ok := groups[m]; !ok {
			months = append(months, m)
		}
		groups[m] = append(groups[m], i)
	}
	res := New(f.columns, months)
	res.query = f.query
	for _, c := range f.columns {
		for n, m := range months {
			var vals []float64
			for _, i := range groups[m] {
				if v := f.data[c][i]; !math.IsNaN(v) {
					vals = append(vals, v)
				}
			}
			if len(vals) > 0 {
				res.data[c][n] = stat.Mean(vals, nil)
			}
		}
	}
	return res
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (f *Frame) row(i int) []string {
	row := make([]string, 0, len(f.columns)+1)
	row = append(row, f.dates[i].String())
	for _, c := range f.columns {
		row = append(row, formatCell(f.data[c][i]))
	}
	return row
}

func (f *Frame) header() []string {
	return append([]string{"Date"}, f.columns...)
}

// Params are parameters for pretty-printing or CSV export of Frame data.
type Params struct {
	Rows     int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader bool // whether to print the header, default - yes
}

// WriteCSV writes the entire Frame to w in CSV format.
func (f *Frame) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader {
		if err := cw.Write(f.header()); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i := range f.dates {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(f.row(i)); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the Frame as a text table formatted for ease of reading.
func (f *Frame) WriteText(w io.Writer, p Params) error {
	widths := make([]int, len(f.columns)+1)
	update := func(row []string) {
		for i, s := range row {
			if widths[i] < len(s) {
				widths[i] = len(s)
			}
		}
	}
	write := func(row []string) error {
		padded := make([]string, len(row))
		for i, s := range row {
			padded[i] = fmt.Sprintf("%[2]*[1]s", s, widths[i])
		}
		// NaN cells render empty, so the last column may pad to nothing.
		line := strings.TrimRight(strings.Join(padded, " | "), " ")
		_, err := fmt.Fprintf(w, "%s\n", line)
		return err
	}

	if !p.NoHeader {
		update(f.header())
	}
	for i := range f.dates {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		update(f.row(i))
	}
	if !p.NoHeader {
		if err := write(f.header()); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		dashes := make([]string, len(widths))
		for i, w := range widths {
			dashes[i] = strings.Repeat("-", w)
		}
		if err := write(dashes); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for i := range f.dates {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := write(f.row(i)); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	return nil
}
