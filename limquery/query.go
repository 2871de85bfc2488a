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

// Package limquery renders structured request parameters into the service's
// LET/SHOW/WHEN query grammar. All builders are pure functions of their
// inputs: the same input always yields the same text, and clause declaration
// order follows input order because the service evaluates forward references
// in declaration order.
package limquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"

	"github.com/golim/golim/db"
)

// ErrNoSymbols is returned by builders given zero symbols where at least one
// is required.
var ErrNoSymbols = errors.Reason("at least one symbol is required")

// FormulaError indicates that a formula references a symbol not present in
// the supplied symbol set.
type FormulaError struct {
	Symbol string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("formula references unknown symbol '%s'", e.Symbol)
}

// DefaultColumn is the data column used when the caller does not name one.
const DefaultColumn = "Close"

// DefaultRolloverDate is the rollover rule used when the caller does not
// supply one.
const DefaultRolloverDate = "5 days before expiration day"

// render assembles the three clause groups into a single statement. Empty
// groups are omitted entirely.
func render(lets, shows, whens []string) string {
	var sb strings.Builder
	section := func(keyword string, lines []string) {
		if len(lines) == 0 {
			return
		}
		sb.WriteString(keyword)
		sb.WriteString("\n")
		for _, l := range lines {
			sb.WriteString(l)
			sb.WriteString("\n")
		}
	}
	section("LET", lets)
	section("SHOW", shows)
	section("WHEN", whens)
	return sb.String()
}

// orJoin renders DEFINED predicates as a disjunction: every line but the last
// carries a trailing OR.
func orJoin(preds []string) []string {
	lines := make([]string, len(preds))
	for i, p := range preds {
		if i < len(preds)-1 {
			lines[i] = p + " OR"
		} else {
			lines[i] = p
		}
	}
	return lines
}

// SeriesMeta carries the per-symbol, per-column earliest observation dates
// obtained from the relation resolver. It decides whether a pricing-agency
// symbol needs the (High+Low)/2 substitution.
type SeriesMeta map[string]map[string]db.Date

// UseHighLow reports whether the symbol's earliest Low observation predates
// its earliest Close or MidPoint observation, in which case the raw series
// misses early history that the High/Low average covers.
func (m SeriesMeta) UseHighLow(symbol string) bool {
	starts, ok := m[symbol]
	if !ok {
		return false
	}
	low, hasLow := starts["Low"]
	_, hasHigh := starts["High"]
	if !hasLow || !hasHigh {
		return false
	}
	if c, ok := starts["Close"]; ok && low.Before(c) {
		return true
	}
	if mp, ok := starts["MidPoint"]; ok && low.Before(mp) {
		return true
	}
	return false
}

// BuildSeriesQuery renders a plain time-series request: one SHOW line per
// symbol in input order, with the (High+Low)/2 substitution for
// pricing-agency symbols whose metadata calls for it. When start is non-zero
// a single "date is after" filter for the preceding day is appended, unless
// one of the symbols already embeds a "date is within" clause.
func BuildSeriesQuery(symbols []string, meta SeriesMeta, start db.Date) (string, error) {
	if len(symbols) == 0 {
		return "", ErrNoSymbols
	}
	var sb strings.Builder
	sb.WriteString("Show \n")
	hasCustomWhen := false
	for _, s := range symbols {
		if strings.Contains(s, "date is within") {
			hasCustomWhen = true
		}
		if IsPRASymbol(s) && meta.UseHighLow(s) {
			fmt.Fprintf(&sb, "%s: (High of %s + Low of %s)/2 \n", s, s, s)
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", s, s)
	}
	if !start.IsZero() && !hasCustomWhen {
		fmt.Fprintf(&sb, "when date is after %s\n", start.AddDays(-1).US())
	}
	return sb.String(), nil
}

// CurveSymbol is one symbol of a forward-curve request, classified by the
// relation resolver as futures-like or not.
type CurveSymbol struct {
	Name    string
	Futures bool
}

func forwardCurveLet(attr, symbol, column, dateStr string) string {
	return fmt.Sprintf(`ATTR %s = forward_curve(%s,"%s","%s","","","days","",0 day ago)`,
		attr, symbol, column, dateStr)
}

// lastDefinedLet declares a non-futures attribute that falls back to the most
// recent defined prior value when the symbol is undefined on a date.
func lastDefinedLet(attr, symbol string) string {
	return fmt.Sprintf("ATTR %s = last_defined(%s)", attr, symbol)
}

// BuildCurveQuery renders a forward-curve request for multiple symbols and a
// single curve date. A zero curveDate means the most recent curve ("LAST"),
// in which case the WHEN disjunction is additionally restricted to the last
// business day before today so full history is not returned. A non-empty
// formula has its futures symbols rewritten to their LET-bound attributes and
// its non-futures symbols neutralized to 0 (the service grammar cannot mix
// curve and spot values in one expression; callers finish such combinations
// after decoding).
func BuildCurveQuery(symbols []CurveSymbol, curveDate db.Date, column string,
	formula string, today db.Date) (string, error) {
	if len(symbols) == 0 {
		return "", ErrNoSymbols
	}
	if column == "" {
		column = DefaultColumn
	}
	dateStr := "LAST"
	if !curveDate.IsZero() {
		dateStr = curveDate.US()
	}

	var lets, shows, preds []string
	repl := make(map[string]string)
	names := make(map[string]bool)
	for _, s := range symbols {
		attr := "x" + s.Name
		if s.Futures {
			lets = append(lets, forwardCurveLet(attr, s.Name, column, dateStr))
			repl[s.Name] = attr
		} else {
			lets = append(lets, lastDefinedLet(attr, s.Name))
			repl[s.Name] = "0"
		}
		shows = append(shows, fmt.Sprintf("%s: %s", s.Name, attr))
		preds = append(preds, attr+" is DEFINED")
		names[s.Name] = true
	}

	if formula != "" {
		label, expr := SplitFormula(formula)
		for _, id := range identifiers(expr) {
			if !names[id] {
				return "", &FormulaError{Symbol: id}
			}
		}
		line := RewriteSymbols(expr, repl)
		if label != "" {
			line = label + ": " + line
		}
		shows = append(shows, line)
	}

	var whens []string
	if curveDate.IsZero() {
		if today.IsZero() {
			today = db.Today()
		}
		whens = []string{fmt.Sprintf("{ %s } and date is after %s",
			strings.Join(preds, " OR "), today.LastBusinessDay().US())}
	} else {
		whens = orJoin(preds)
	}
	return render(lets, shows, whens), nil
}

// BuildCurveHistoryQuery renders a forward-curve request for a single symbol
// and multiple curve dates: one LET/SHOW pair per date, shown under the date
// formatted as YYYY/MM/DD.
func BuildCurveHistoryQuery(symbol string, curveDates []db.Date, column string) (string, error) {
	if symbol == "" {
		return "", ErrNoSymbols
	}
	if len(curveDates) == 0 {
		return "", errors.Reason("at least one curve date is required")
	}
	if column == "" {
		column = DefaultColumn
	}
	var lets, shows, preds []string
	for i, d := range curveDates {
		attr := "x" + strconv.Itoa(i+1)
		lets = append(lets, forwardCurveLet(attr, symbol, column, d.US()))
		shows = append(shows, fmt.Sprintf("%s: %s", d.YMD(), attr))
		preds = append(preds, attr+" is DEFINED")
	}
	return render(lets, shows, orJoin(preds)), nil
}

// BuildRolloverQuery renders continuation series for each (symbol, month)
// pair using the given rollover rule. The nearest month uses the "actual
// prices" policy, month N>1 the "<N> nearby actual prices" policy; each
// continuation is shown under a <symbol>_M<N> label. A non-zero start date
// adds a "date is after" filter for the preceding day, so start itself is
// included.
func BuildRolloverQuery(symbols []string, months []string, rolloverDate string,
	start db.Date) (string, error) {
	if len(symbols) == 0 {
		return "", ErrNoSymbols
	}
	if len(months) == 0 {
		months = []string{"M1"}
	}
	if rolloverDate == "" {
		rolloverDate = DefaultRolloverDate
	}
	var lets, shows []string
	for _, s := range symbols {
		for _, month := range months {
			if len(month) < 2 || (month[0] != 'M' && month[0] != 'm') {
				return "", errors.Reason("malformed month '%s': want M<N>", month)
			}
			n, err := strconv.Atoi(month[1:])
			if err != nil || n < 1 {
				return "", errors.Reason("malformed month '%s': want M<N>", month)
			}
			policy := "actual prices"
			if n > 1 {
				policy = fmt.Sprintf("%d nearby actual prices", n)
			}
			label := fmt.Sprintf("%s_M%d", s, n)
			lets = append(lets, fmt.Sprintf(`%s = %s(ROLLOVER_DATE = "%s",ROLLOVER_POLICY = "%s")`,
				label, s, rolloverDate, policy))
			shows = append(shows, fmt.Sprintf("%s: %s", label, label))
		}
	}
	var whens []string
	if !start.IsZero() {
		whens = []string{"date is after " + start.AddDays(-1).US()}
	}
	return render(lets, shows, whens), nil
}

// BuildContractsFormulaQuery renders the formula once per concrete contract:
// every whole-word occurrence of every matched symbol is rewritten to its
// contract-qualified identifier, the rewritten expression is LET-bound, and
// shown under the contract's own label.
func BuildContractsFormulaQuery(formula string, matches []string,
	contracts []string, start db.Date) (string, error) {
	if len(matches) == 0 {
		return "", ErrNoSymbols
	}
	if len(contracts) == 0 {
		return "", errors.Reason("at least one contract is required")
	}
	matchSet := make(map[string]bool)
	for _, m := range matches {
		matchSet[m] = true
	}
	_, expr := SplitFormula(formula)
	for _, id := range identifiers(expr) {
		if !matchSet[id] {
			return "", &FormulaError{Symbol: id}
		}
	}
	var lets, shows []string
	for _, c := range contracts {
		repl := make(map[string]string, len(matches))
		for _, m := range matches {
			repl[m] = m + "_" + c
		}
		attr := "x" + c
		lets = append(lets, fmt.Sprintf("ATTR %s = %s", attr, RewriteSymbols(expr, repl)))
		shows = append(shows, fmt.Sprintf("%s: %s", c, attr))
	}
	var whens []string
	if !start.IsZero() {
		whens = []string{"date is after " + start.AddDays(-1).US()}
	}
	return render(lets, shows, whens), nil
}
