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
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"golang.org/x/exp/slices"

	"github.com/golim/golim/db"
	"github.com/golim/golim/limquery"
)

const relationsEndpoint = "/rs/api/schema/relations/"

// Relation node types in the service's vocabulary.
const (
	RelationCategory = "CATEGORY" // a sub-category of the hierarchy
	RelationNormal   = "NORMAL"   // a plain series
	RelationFutures  = "FUTURES"  // a derivative series
)

// ColumnRange is the inclusive observation range of one data column of a
// relation.
type ColumnRange struct {
	Column string
	Start  db.Date
	End    db.Date
}

// Relation is one resolved node of the symbol hierarchy. Relations are
// immutable once resolved; cached values are shared between callers and must
// not be modified.
type Relation struct {
	Name     string
	Type     string
	Children []Relation
	Columns  []ColumnRange
}

// IsSeries reports whether the node is a concrete series rather than a
// category.
func (r *Relation) IsSeries() bool {
	return r.Type == RelationNormal || r.Type == RelationFutures
}

// RelOptions select what the relations endpoint includes in its response.
type RelOptions struct {
	ShowChildren bool
	ShowColumns  bool
	Desc         bool
	DateRange    bool
}

type relationColumnXML struct {
	Name  string `xml:"name,attr"`
	Start string `xml:"start,attr"`
	End   string `xml:"end,attr"`
}

type relationXML struct {
	Name     string              `xml:"name,attr"`
	Type     string              `xml:"type,attr"`
	Children []relationXML       `xml:"Children>Relation"`
	Columns  []relationColumnXML `xml:"Columns>Column"`
}

type relationsXML struct {
	Status    string        `xml:"status,attr"`
	StatusMsg string        `xml:"statusMsg,attr"`
	Relations []relationXML `xml:"Relation"`
}

func convertRelation(rx *relationXML) (Relation, error) {
	r := Relation{Name: rx.Name, Type: rx.Type}
	for i := range rx.Children {
		child, err := convertRelation(&rx.Children[i])
		if err != nil {
			return r, err
		}
		r.Children = append(r.Children, child)
	}
	for _, cx := range rx.Columns {
		cr := ColumnRange{Column: cx.Name}
		var err error
		if cx.Start != "" {
			if cr.Start, err = db.NewDateFromString(cx.Start); err != nil {
				return r, errors.Annotate(err, "malformed column start date")
			}
		}
		if cx.End != "" {
			if cr.End, err = db.NewDateFromString(cx.End); err != nil {
				return r, errors.Annotate(err, "malformed column end date")
			}
		}
		r.Columns = append(r.Columns, cr)
	}
	return r, nil
}

// normalizeSymbols deduplicates and sorts the symbol set, so that the same
// logical resolution always produces the same request and cache key.
func normalizeSymbols(symbols []string) []string {
	norm := append([]string{}, symbols...)
	slices.Sort(norm)
	return slices.Compact(norm)
}

func relCacheKey(norm []string, opt RelOptions) string {
	return fmt.Sprintf("%s|%t%t%t%t", strings.Join(norm, ","),
		opt.ShowChildren, opt.ShowColumns, opt.Desc, opt.DateRange)
}

// Relations resolves the symbol set against the service's hierarchy.
// Identical resolutions (same symbol set and options) are served from an
// in-process cache for the lifetime of the Client; the cache has no
// invalidation, so a long-lived Client does not observe service-side schema
// changes. Two concurrent identical resolutions may both hit the network;
// the later one harmlessly overwrites the memo entry.
func (c *Client) Relations(ctx context.Context, symbols []string, opt RelOptions) ([]Relation, error) {
	if len(symbols) == 0 {
		return nil, limquery.ErrNoSymbols
	}
	norm := normalizeSymbols(symbols)
	key := relCacheKey(norm, opt)
	c.relMu.Lock()
	cached, ok := c.relCache[key]
	c.relMu.Unlock()
	if ok {
		return cached, nil
	}

	resp, err := c.rest.R().SetContext(ctx).
		SetQueryParam("showChildren", strconv.FormatBool(opt.ShowChildren)).
		SetQueryParam("showColumns", strconv.FormatBool(opt.ShowColumns)).
		SetQueryParam("desc", strconv.FormatBool(opt.Desc)).
		SetQueryParam("dateRange", strconv.FormatBool(opt.DateRange)).
		Get(relationsEndpoint + strings.Join(norm, ","))
	if terr := transportCheck(resp, err); terr != nil {
		return nil, terr
	}
	var rx relationsXML
	if err := xml.Unmarshal(resp.Body(), &rx); err != nil {
		return nil, errors.Annotate(err, "failed to parse relations response")
	}
	if rx.Status != "" {
		status, err := strconv.Atoi(rx.Status)
		if err != nil {
			return nil, errors.Annotate(err, "malformed status attribute '%s'", rx.Status)
		}
		if status != StatusOK {
			return nil, &SchemaError{
				Status:  status,
				Message: rx.StatusMsg,
				URL:     resp.Request.URL,
			}
		}
	}
	rels := make([]Relation, 0, len(rx.Relations))
	for i := range rx.Relations {
		r, err := convertRelation(&rx.Relations[i])
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	logging.Debugf(ctx, "resolved %d relations for %s", len(rels), strings.Join(norm, ","))

	c.relMu.Lock()
	c.relCache[key] = rels
	c.relMu.Unlock()
	return rels, nil
}

// pathOp is one step of the iterative hierarchy expansion: either emit a
// concrete symbol or expand a sub-category path.
type pathOp struct {
	emit   string
	expand string
}

// FindSymbolsInPath expands a hierarchical path to every concrete series
// under it, in hierarchy order. The traversal uses an explicit worklist
// instead of recursion, and guards against a malformed service response
// claiming self-reference.
func (c *Client) FindSymbolsInPath(ctx context.Context, path string) ([]string, error) {
	stack := []pathOp{{expand: path}}
	visited := make(map[string]bool)
	var symbols []string
	for len(stack) > 0 {
		op := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if op.emit != "" {
			symbols = append(symbols, op.emit)
			continue
		}
		if visited[op.expand] {
			continue
		}
		visited[op.expand] = true
		rels, err := c.Relations(ctx, []string{op.expand}, RelOptions{ShowChildren: true})
		if err != nil {
			return nil, errors.Annotate(err, "failed to expand path '%s'", op.expand)
		}
		var ops []pathOp
		for i := range rels {
			for _, child := range rels[i].Children {
				switch child.Type {
				case RelationNormal, RelationFutures:
					ops = append(ops, pathOp{emit: child.Name})
				case RelationCategory:
					ops = append(ops, pathOp{expand: op.expand + ":" + child.Name})
				}
			}
		}
		// Push in reverse so the children are processed in document order.
		for i := len(ops) - 1; i >= 0; i-- {
			stack = append(stack, ops[i])
		}
	}
	return symbols, nil
}

// SymbolContracts lists the futures contracts related to a symbol. With
// monthlyOnly set, only identifiers carrying a standard contract code
// (4-digit year plus month letter) are returned.
func (c *Client) SymbolContracts(ctx context.Context, symbol string, monthlyOnly bool) ([]string, error) {
	rels, err := c.Relations(ctx, []string{symbol}, RelOptions{ShowChildren: true})
	if err != nil {
		return nil, errors.Annotate(err, "failed to resolve children of '%s'", symbol)
	}
	var contracts []string
	for i := range rels {
		for _, child := range rels[i].Children {
			if monthlyOnly && !limquery.MatchesContractCode(child.Name) {
				continue
			}
			contracts = append(contracts, child.Name)
		}
	}
	return contracts, nil
}

// FindSymbolsInQuery extracts the word-like tokens of a free-form formula,
// resolves them as one batch, and returns only those the service classifies
// as concrete series. Non-symbol tokens (numeric literals, stray words) are
// filtered out by the classification.
func (c *Client) FindSymbolsInQuery(ctx context.Context, formula string) ([]string, error) {
	tokens := limquery.FormulaTokens(formula)
	if len(tokens) == 0 {
		return nil, nil
	}
	rels, err := c.Relations(ctx, tokens, RelOptions{})
	if err != nil {
		return nil, errors.Annotate(err, "failed to resolve formula symbols")
	}
	var symbols []string
	for i := range rels {
		if rels[i].IsSeries() {
			symbols = append(symbols, rels[i].Name)
		}
	}
	return symbols, nil
}
