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

package lim

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"

	"github.com/golim/golim/db"
	"github.com/golim/golim/frame"
)

// wireNode is a generic XML element. The report structure nests its
// ColumnHeadings/RowDates/Values elements at varying depths, so the decoder
// walks the whole subtree rather than binding to a fixed layout.
type wireNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []wireNode `xml:",any"`
	Text    string     `xml:",chardata"`
}

func (n *wireNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// collect appends the text of every descendant element with the given tag,
// in document order.
func (n *wireNode) collect(tag string, out *[]string) {
	for i := range n.Nodes {
		child := &n.Nodes[i]
		if child.XMLName.Local == tag {
			*out = append(*out, strings.TrimSpace(child.Text))
		}
		child.collect(tag, out)
	}
}

// response is a parsed data-request response: the top-level status, and for
// polling responses the service-assigned job id.
type response struct {
	Status  int
	ID      int64
	Message string
	root    wireNode
}

func parseResponse(data []byte) (*response, error) {
	var r response
	if err := xml.Unmarshal(data, &r.root); err != nil {
		return nil, errors.Annotate(err, "failed to parse response XML")
	}
	statusStr, ok := r.root.attr("status")
	if !ok {
		return nil, errors.Reason("response carries no status attribute")
	}
	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return nil, errors.Annotate(err, "malformed status attribute '%s'", statusStr)
	}
	r.Status = status
	if idStr, ok := r.root.attr("id"); ok {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, errors.Annotate(err, "malformed id attribute '%s'", idStr)
		}
		r.ID = id
	}
	r.Message, _ = r.root.attr("statusMsg")
	return &r, nil
}

func emptyFrame(query string) *frame.Frame {
	f := frame.New(nil, nil)
	f.SetQuery(query)
	return f
}

// decodeFrame converts a successful response's report into a Frame: declared
// column headings, parsed row timestamps, and the flat value list reshaped
// row-major across the columns. An empty heading or timestamp list means "no
// data" and yields an empty Frame, not an error.
func (r *response) decodeFrame(query string) (*frame.Frame, error) {
	if len(r.root.Nodes) == 0 {
		return emptyFrame(query), nil
	}
	report := &r.root.Nodes[0]
	var columns, rowDates, values []string
	report.collect("ColumnHeadings", &columns)
	report.collect("RowDates", &rowDates)
	report.collect("Values", &values)
	if len(columns) == 0 || len(rowDates) == 0 {
		return emptyFrame(query), nil
	}
	if len(values)%len(columns) != 0 {
		return nil, errors.Reason(
			"value count [%d] is not a multiple of the column count [%d]",
			len(values), len(columns))
	}
	if len(values)/len(columns) != len(rowDates) {
		return nil, errors.Reason("got %d rows of values for %d row dates",
			len(values)/len(columns), len(rowDates))
	}
	dates := make([]db.Date, len(rowDates))
	for i, s := range rowDates {
		d, err := db.NewDateFromString(s)
		if err != nil {
			return nil, errors.Annotate(err, "malformed row date '%s'", s)
		}
		dates[i] = d
	}
	rows := make([][]float64, len(rowDates))
	for i := range rows {
		row := make([]float64, len(columns))
		for j := range row {
			s := values[i*len(columns)+j]
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Annotate(err, "malformed value '%s'", s)
			}
			row[j] = v
		}
		rows[i] = row
	}
	f, err := frame.NewFromRows(columns, dates, rows)
	if err != nil {
		return nil, errors.Annotate(err, "failed to assemble frame")
	}
	f.SetQuery(query)
	return f, nil
}
