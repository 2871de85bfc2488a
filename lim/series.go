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
	"fmt"
	"math"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"golang.org/x/exp/slices"

	"github.com/golim/golim/db"
	"github.com/golim/golim/frame"
	"github.com/golim/golim/limquery"
)

// Metadata resolves the per-column observation ranges of the symbols. The
// result feeds the (High+Low)/2 substitution decision for pricing-agency
// symbols.
func (c *Client) Metadata(ctx context.Context, symbols []string) (limquery.SeriesMeta, error) {
	rels, err := c.Relations(ctx, symbols, RelOptions{ShowColumns: true, DateRange: true})
	if err != nil {
		return nil, errors.Annotate(err, "failed to resolve series metadata")
	}
	return seriesMeta(rels), nil
}

func seriesMeta(rels []Relation) limquery.SeriesMeta {
	meta := make(limquery.SeriesMeta, len(rels))
	for i := range rels {
		starts := make(map[string]db.Date, len(rels[i].Columns))
		for _, cr := range rels[i].Columns {
			starts[cr.Column] = cr.Start
		}
		meta[rels[i].Name] = starts
	}
	return meta
}

// expandSymbols resolves each symbol argument by its shape: hierarchy paths
// expand to the concrete series under them, plain symbols pass through, and
// formulas are rejected since they need their own query form.
func (c *Client) expandSymbols(ctx context.Context, symbols []string) ([]string, error) {
	expanded := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := limquery.Classify(s)
		switch sym.Kind {
		case limquery.KindPath:
			under, err := c.FindSymbolsInPath(ctx, strings.TrimSpace(sym.Text))
			if err != nil {
				return nil, errors.Annotate(err, "failed to expand path '%s'", s)
			}
			if len(under) == 0 {
				return nil, errors.Reason("no series under path '%s'", s)
			}
			expanded = append(expanded, under...)
		case limquery.KindFormula:
			return nil, errors.Reason(
				"'%s' is a formula, not a symbol; run it as a full query", s)
		default:
			expanded = append(expanded, sym.Text)
		}
	}
	return expanded, nil
}

// Series fetches the time series of the symbols from start onward (a zero
// start fetches full history). Hierarchy paths among the symbols expand to
// the concrete series under them. Pricing-agency symbols whose early history
// only exists as High/Low quotes are fetched as their (High+Low)/2 average.
func (c *Client) Series(ctx context.Context, symbols []string, start db.Date) (*frame.Frame, error) {
	symbols, err := c.expandSymbols(ctx, symbols)
	if err != nil {
		return nil, err
	}
	var pra []string
	for _, s := range symbols {
		if limquery.IsPRASymbol(s) {
			pra = append(pra, s)
		}
	}
	var meta limquery.SeriesMeta
	if len(pra) > 0 {
		var err error
		if meta, err = c.Metadata(ctx, pra); err != nil {
			return nil, err
		}
	}
	q, err := limquery.BuildSeriesQuery(symbols, meta, start)
	if err != nil {
		return nil, err
	}
	return c.CachedQuery(ctx, q)
}

// Alias is a symbol with the column name it should appear under in the
// result.
type Alias struct {
	Symbol string
	Name   string
}

// SeriesAs is Series with the result columns renamed per the aliases.
func (c *Client) SeriesAs(ctx context.Context, aliases []Alias, start db.Date) (*frame.Frame, error) {
	symbols := make([]string, len(aliases))
	names := make(map[string]string, len(aliases))
	for i, a := range aliases {
		symbols[i] = a.Symbol
		if a.Name != "" {
			names[a.Symbol] = a.Name
		}
	}
	f, err := c.Series(ctx, symbols, start)
	if err != nil {
		return nil, err
	}
	f.Rename(names)
	return f, nil
}

// curveSymbols classifies each symbol as futures-like or not per the
// service's hierarchy.
func (c *Client) curveSymbols(ctx context.Context, symbols []string) ([]limquery.CurveSymbol, error) {
	rels, err := c.Relations(ctx, symbols, RelOptions{})
	if err != nil {
		return nil, errors.Annotate(err, "failed to classify curve symbols")
	}
	futures := make(map[string]bool, len(rels))
	for i := range rels {
		futures[rels[i].Name] = rels[i].Type == RelationFutures
	}
	cs := make([]limquery.CurveSymbol, len(symbols))
	for i, s := range symbols {
		cs[i] = limquery.CurveSymbol{Name: s, Futures: futures[s]}
	}
	return cs, nil
}

// Curve fetches forward curves. With zero or one curveDates it returns the
// curve as of that date (zero dates = the most recent curve) with one column
// per symbol, plus the formula's column when a formula is given. With multiple
// curveDates it returns the curve history of a single symbol, one column per
// curve date; formulas are not supported in that mode. In both modes the rows
// (contract delivery dates) are resampled to month-start means. Curve results
// are not routed through the result cache: a curve is a snapshot, not an
// append-only series.
func (c *Client) Curve(ctx context.Context, symbols []string, column string,
	curveDates []db.Date, formula string) (*frame.Frame, error) {
	if len(curveDates) > 1 {
		if len(symbols) != 1 {
			return nil, errors.Reason(
				"curve history requires exactly one symbol, got %d", len(symbols))
		}
		if formula != "" {
			return nil, errors.Reason("curve history does not support a formula")
		}
		q, err := limquery.BuildCurveHistoryQuery(symbols[0], curveDates, column)
		if err != nil {
			return nil, err
		}
		f, err := c.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return f.ResampleMonthStart(), nil
	}
	cs, err := c.curveSymbols(ctx, symbols)
	if err != nil {
		return nil, err
	}
	var curveDate db.Date
	if len(curveDates) == 1 {
		curveDate = curveDates[0]
	}
	q, err := limquery.BuildCurveQuery(cs, curveDate, column, formula, db.Date{})
	if err != nil {
		return nil, err
	}
	f, err := c.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return f.ResampleMonthStart(), nil
}

// CurveFormula evaluates an arithmetic formula over forward curves. Without
// curveDates it evaluates the most recent curve in a single request. With
// curveDates it fetches the curve for each date separately and joins the
// formula's column across dates, one result column per curve date labeled
// YYYY/MM/DD; dates for which the service has no curve are skipped.
func (c *Client) CurveFormula(ctx context.Context, formula, column string,
	curveDates []db.Date) (*frame.Frame, error) {
	matches, err := c.FindSymbolsInQuery(ctx, formula)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.Reason("no known symbols in formula '%s'", formula)
	}
	if len(curveDates) == 0 {
		return c.Curve(ctx, matches, column, nil, formula)
	}
	label, _ := limquery.SplitFormula(formula)
	if label == "" {
		label = "1"
	}
	var joined *frame.Frame
	for _, d := range curveDates {
		f, err := c.Curve(ctx, matches, column, []db.Date{d}, formula)
		if err != nil {
			return nil, err
		}
		if f.Empty() {
			logging.Warningf(ctx, "no curve for %s, skipping", d)
			continue
		}
		sel, err := f.Select(label)
		if err != nil {
			return nil, errors.Annotate(err, "formula column missing for %s", d)
		}
		sel.Rename(map[string]string{label: d.YMD()})
		if joined == nil {
			joined = sel
		} else {
			joined = joined.Merge(sel)
		}
	}
	if joined == nil {
		return emptyFrame(""), nil
	}
	return joined.DropEmptyRows(), nil
}

// ContinuousFuturesRollover fetches continuation series for the symbol, one
// column per requested month (e.g. "M1", "M2"), stitched with the given
// rollover rule. A zero start defaults to the start of the previous calendar
// year; an empty rolloverDate defaults to 5 days before expiration.
func (c *Client) ContinuousFuturesRollover(ctx context.Context, symbol string,
	months []string, rolloverDate string, start db.Date) (*frame.Frame, error) {
	if start.IsZero() {
		start = db.NewDate(db.Today().YearVal-1, 1, 1)
	}
	q, err := limquery.BuildRolloverQuery([]string{symbol}, months, rolloverDate, start)
	if err != nil {
		return nil, err
	}
	return c.CachedQuery(ctx, q)
}

// ContractsOptions restrict which futures contracts a formula is evaluated
// over.
type ContractsOptions struct {
	StartYear int      // earliest delivery year, 0 = unbounded
	EndYear   int      // latest delivery year, 0 = unbounded
	Months    []string // delivery month letters, empty = all
	Start     db.Date  // observation start date, zero = full history
}

// contractCodes lists the code suffixes ("2020F") of a symbol's monthly
// contracts within the options' bounds.
func (c *Client) contractCodes(ctx context.Context, symbol string, opt ContractsOptions) ([]string, error) {
	contracts, err := c.SymbolContracts(ctx, symbol, true)
	if err != nil {
		return nil, err
	}
	contracts = limquery.FilterContracts(contracts, opt.StartYear, opt.EndYear, opt.Months)
	codes := make([]string, 0, len(contracts))
	for _, ct := range contracts {
		codes = append(codes, strings.TrimPrefix(ct, symbol+"_"))
	}
	return codes, nil
}

// Contracts evaluates the formula once per delivery contract: for every
// contract code available for all of the formula's symbols, each symbol is
// rewritten to its contract-qualified identifier and the result is shown
// under the contract code's own column.
func (c *Client) Contracts(ctx context.Context, formula string, opt ContractsOptions) (*frame.Frame, error) {
	matches, err := c.FindSymbolsInQuery(ctx, formula)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.Reason("no known symbols in formula '%s'", formula)
	}
	var common []string
	for i, m := range matches {
		codes, err := c.contractCodes(ctx, m, opt)
		if err != nil {
			return nil, errors.Annotate(err, "failed to list contracts of '%s'", m)
		}
		if i == 0 {
			common = codes
			continue
		}
		var both []string
		for _, code := range common {
			if slices.Contains(codes, code) {
				both = append(both, code)
			}
		}
		common = both
	}
	if len(common) == 0 {
		return nil, errors.Reason("no common contracts for %s", strings.Join(matches, ", "))
	}
	slices.Sort(common)
	q, err := limquery.BuildContractsFormulaQuery(formula, matches, common, opt.Start)
	if err != nil {
		return nil, err
	}
	return c.CachedQuery(ctx, q)
}

// Structure fetches the futures time-spread between the mx-th and my-th
// continuation months of the symbol: both continuations plus their difference
// as an "M<mx>-M<my>" column, with the all-NaN rows dropped.
func (c *Client) Structure(ctx context.Context, symbol string, mx, my int,
	start db.Date) (*frame.Frame, error) {
	if mx < 1 || my < 1 {
		return nil, errors.Reason("month indices must be positive, got M%d, M%d", mx, my)
	}
	months := []string{fmt.Sprintf("M%d", mx), fmt.Sprintf("M%d", my)}
	f, err := c.ContinuousFuturesRollover(ctx, symbol, months, "", start)
	if err != nil {
		return nil, err
	}
	near := f.Column(fmt.Sprintf("%s_M%d", symbol, mx))
	far := f.Column(fmt.Sprintf("%s_M%d", symbol, my))
	if near == nil || far == nil {
		return nil, errors.Reason("continuation columns missing for '%s'", symbol)
	}
	diff := make([]float64, f.NumRows())
	for i := range diff {
		if math.IsNaN(near[i]) || math.IsNaN(far[i]) {
			diff[i] = math.NaN()
			continue
		}
		diff[i] = near[i] - far[i]
	}
	if err := f.AddColumn(fmt.Sprintf("M%d-M%d", mx, my), diff); err != nil {
		return nil, err
	}
	return f.DropEmptyRows(), nil
}
