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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSymbols(t *testing.T) {
	t.Parallel()

	Convey("Classify", t, func() {
		So(Classify("FB").Kind, ShouldEqual, KindPlain)
		So(Classify("Show 1: FP/7.45-FB").Kind, ShouldEqual, KindFormula)
		So(Classify("  show 1: FP-FB").Kind, ShouldEqual, KindFormula)
		So(Classify("LET x = FB").Kind, ShouldEqual, KindFormula)
		path := Classify("TopRelation:Futures:Ipe")
		So(path.Kind, ShouldEqual, KindPath)
		So(path.Segments, ShouldResemble, []string{"TopRelation", "Futures", "Ipe"})
	})

	Convey("IsPRASymbol", t, func() {
		So(IsPRASymbol("FB"), ShouldBeFalse)
		So(IsPRASymbol("CL"), ShouldBeFalse)
		So(IsPRASymbol("AAGXJ00"), ShouldBeTrue)
		So(IsPRASymbol("PGACR00"), ShouldBeTrue)
		So(IsPRASymbol("PJABA00"), ShouldBeTrue)
		// Argus symbols are dotted.
		So(IsPRASymbol("PA0005643.6.0"), ShouldBeTrue)
		So(IsPRASymbol("PA000564.6.0"), ShouldBeFalse)
		// Right prefix, wrong length.
		So(IsPRASymbol("PGACR0"), ShouldBeFalse)
		So(IsPRASymbol("PGACR000"), ShouldBeFalse)
	})

	Convey("FormulaTokens", t, func() {
		// Numeric literals survive tokenization; the schema lookup filters
		// them downstream.
		So(FormulaTokens("Show 1: FP/7.45-FB"), ShouldResemble,
			[]string{"FP", "45", "FB"})
		So(FormulaTokens("Show 1: FB-FB"), ShouldResemble, []string{"FB"})
		So(FormulaTokens(""), ShouldBeNil)
	})

	Convey("SplitFormula", t, func() {
		label, expr := SplitFormula("Show 1: FP/7.45-FB")
		So(label, ShouldEqual, "1")
		So(expr, ShouldEqual, "FP/7.45-FB")

		label, expr = SplitFormula("FP-FB")
		So(label, ShouldEqual, "")
		So(expr, ShouldEqual, "FP-FB")
	})

	Convey("RewriteSymbols", t, func() {
		Convey("whole words only", func() {
			got := RewriteSymbols("FP/7.45-FP_LONGER", map[string]string{
				"FP":        "xFP",
				"FP_LONGER": "xFP_LONGER",
			})
			So(got, ShouldEqual, "xFP/7.45-xFP_LONGER")
		})

		Convey("every occurrence is rewritten", func() {
			got := RewriteSymbols("FB-FB", map[string]string{"FB": "xFB"})
			So(got, ShouldEqual, "xFB-xFB")
		})
	})

	Convey("Contract codes", t, func() {
		So(MatchesContractCode("FP_2020F"), ShouldBeTrue)
		So(MatchesContractCode("FP"), ShouldBeFalse)

		year, month, ok := ContractCode("FB_2020Z")
		So(ok, ShouldBeTrue)
		So(year, ShouldEqual, 2020)
		So(month, ShouldEqual, "Z")

		year, month, ok = ContractCode("2020F")
		So(ok, ShouldBeTrue)
		So(year, ShouldEqual, 2020)
		So(month, ShouldEqual, "F")

		_, _, ok = ContractCode("FB_ABCDE")
		So(ok, ShouldBeFalse)

		Convey("filtering", func() {
			contracts := []string{
				"FP_2019F", "FP_2020F", "FP_2020G", "FP_2021Z", "junk",
			}
			So(FilterContracts(contracts, 2020, 2020, []string{"F"}),
				ShouldResemble, []string{"FP_2020F"})
			So(FilterContracts(contracts, 2020, 0, nil),
				ShouldResemble, []string{"FP_2020F", "FP_2020G", "FP_2021Z"})
			// Month letters match case-insensitively across all years.
			So(FilterContracts(contracts, 0, 0, []string{"f", "g"}),
				ShouldResemble, []string{"FP_2019F", "FP_2020F", "FP_2020G"})
		})
	})
}
