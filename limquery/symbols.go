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

package limquery

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind distinguishes the three shapes a symbol argument can take. The shape
// is determined once at the API boundary; all downstream code dispatches on
// the tag instead of re-inspecting strings.
type Kind int

const (
	// KindPlain is an alphanumeric instrument code, e.g. "FB".
	KindPlain Kind = iota
	// KindFormula is a full statement beginning with the Show keyword that
	// embeds other symbols, e.g. "Show 1: FP/7.45-FB".
	KindFormula
	// KindPath is a colon-separated location in the symbol hierarchy, e.g.
	// "TopRelation:Futures:Ipe".
	KindPath
)

// Symbol is a classified symbol argument.
type Symbol struct {
	Kind     Kind
	Text     string
	Segments []string // hierarchy segments, only for KindPath
}

// Classify determines the shape of a symbol argument.
func Classify(s string) Symbol {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "show") || strings.HasPrefix(lower, "let") {
		return Symbol{Kind: KindFormula, Text: s}
	}
	if strings.Contains(trimmed, ":") {
		return Symbol{Kind: KindPath, Text: s, Segments: strings.Split(trimmed, ":")}
	}
	return Symbol{Kind: KindPlain, Text: s}
}

// Platts symbol prefixes requiring high/low averaging treatment.
var plattsPrefixes = map[string]bool{
	"PC": true, "PA": true, "AA": true, "PU": true, "F1": true,
	"PH": true, "PJ": true, "PG": true, "PO": true, "PP": true,
}

// IsPRASymbol reports whether the symbol belongs to a pricing-agency naming
// convention (Platts or Argus) whose series may need (High+Low)/2 averaging.
func IsPRASymbol(symbol string) bool {
	if len(symbol) == 7 && plattsPrefixes[symbol[:2]] {
		return true
	}
	if strings.Contains(symbol, ".") {
		sm := strings.SplitN(symbol, ".", 2)[0]
		if len(sm) == 9 && strings.HasPrefix(sm, "PA") {
			return true
		}
	}
	return false
}

var (
	tokenRe    = regexp.MustCompile(`\w[a-zA-Z0-9_]+`)
	identRe    = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	contractRe = regexp.MustCompile(`\d{4}\w`)
)

// FormulaTokens extracts the word-like tokens of a free-form formula,
// excluding the Show keyword and duplicates. The list may still contain
// non-symbol tokens (e.g. numeric literals); callers resolve the batch
// against the service schema to keep only concrete series.
func FormulaTokens(formula string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, t := range tokenRe.FindAllString(formula, -1) {
		if t == "Show" || seen[t] {
			continue
		}
		seen[t] = true
		tokens = append(tokens, t)
	}
	return tokens
}

// identifiers extracts the alphabetic identifiers of a formula expression,
// deduplicated in order of first occurrence.
func identifiers(expr string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, t := range identRe.FindAllString(expr, -1) {
		if seen[t] {
			continue
		}
		seen[t] = true
		ids = append(ids, t)
	}
	return ids
}

// SplitFormula strips the leading Show keyword from a formula statement and
// splits off the output label, e.g. "Show 1: FP/7.45-FB" yields label "1" and
// expression "FP/7.45-FB". A formula without a label yields an empty label.
func SplitFormula(formula string) (label, expr string) {
	s := strings.TrimSpace(formula)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "show") {
		s = strings.TrimSpace(s[len("show"):])
	}
	if i := strings.Index(s, ":"); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return "", s
}

// RewriteSymbols replaces every whole-word occurrence of each key in expr
// with its mapped value. Longer symbols are rewritten first so that e.g. a
// symbol FP never matches inside FP_LONGER.
func RewriteSymbols(expr string, repl map[string]string) string {
	syms := make([]string, 0, len(repl))
	for s := range repl {
		syms = append(syms, s)
	}
	// Longest first, then lexicographic for determinism.
	for i := 0; i < len(syms); i++ {
		for j := i + 1; j < len(syms); j++ {
			if len(syms[j]) > len(syms[i]) ||
				(len(syms[j]) == len(syms[i]) && syms[j] < syms[i]) {
				syms[i], syms[j] = syms[j], syms[i]
			}
		}
	}
	for _, s := range syms {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)
		expr = re.ReplaceAllString(expr, repl[s])
	}
	return expr
}

// MatchesContractCode reports whether the identifier contains a futures
// contract code: a 4-digit year followed by a month letter.
func MatchesContractCode(s string) bool {
	return contractRe.MatchString(s)
}

// ContractCode extracts the code suffix of a contract identifier like
// "FB_2020Z": the delivery year and month letter.
func ContractCode(contract string) (year int, month string, ok bool) {
	i := strings.LastIndex(contract, "_")
	code := contract[i+1:] // full string when no underscore
	if len(code) < 5 {
		return 0, "", false
	}
	year, err := strconv.Atoi(code[:4])
	if err != nil {
		return 0, "", false
	}
	return year, code[4:], true
}

// FilterContracts keeps the contracts within the inclusive [startYear,
// endYear] range (0 = unbounded) whose month letter is in months (empty =
// all months). Identifiers without a recognizable contract code are dropped.
func FilterContracts(contracts []string, startYear, endYear int, months []string) []string {
	monthSet := make(map[string]bool)
	for _, m := range months {
		monthSet[strings.ToUpper(m)] = true
	}
	var res []string
	for _, c := range contracts {
		year, month, ok := ContractCode(c)
		if !ok {
			continue
		}
		if startYear > 0 && year < startYear {
			continue
		}
		if endYear > 0 && year > endYear {
			continue
		}
		if len(monthSet) > 0 && !monthSet[strings.ToUpper(month)] {
			continue
		}
		res = append(res, c)
	}
	return res
}
