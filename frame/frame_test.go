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

package frame

import (
	"bytes"
	"math"
	"testing"

	"github.com/stockparfait/testutil"

	"github.com/golim/golim/db"

	. "github.com/smartystreets/goconvey/convey"
)

func TestFrame(t *testing.T) {
	t.Parallel()

	dates := []db.Date{
		db.NewDate(2020, 1, 2),
		db.NewDate(2020, 1, 3),
		db.NewDate(2020, 1, 6),
	}

	Convey("Construction and access", t, func() {
		f, err := NewFromRows([]string{"FB", "FP"}, dates, [][]float64{
			{10.0, 100.0},
			{11.0, 110.0},
			{12.0, 120.0},
		})
		So(err, ShouldBeNil)
		So(f.Check(), ShouldBeNil)
		So(f.Columns(), ShouldResemble, []string{"FB", "FP"})
		So(f.NumRows(), ShouldEqual, 3)
		So(f.Empty(), ShouldBeFalse)
		So(f.Column("FB"), ShouldResemble, []float64{10.0, 11.0, 12.0})
		So(f.Value(1, "FP"), ShouldEqual, 110.0)
		So(math.IsNaN(f.Value(5, "FP")), ShouldBeTrue)
		So(math.IsNaN(f.Value(0, "XX")), ShouldBeTrue)

		Convey("shape mismatches are rejected", func() {
			_, err := NewFromRows([]string{"FB"}, dates, [][]float64{{1.0}})
			So(err, ShouldNotBeNil)
			_, err = NewFromRows([]string{"FB"}, dates[:1], [][]float64{{1.0, 2.0}})
			So(err, ShouldNotBeNil)
		})

		Convey("record round-trip", func() {
			f.SetQuery("Show \nFB: FB\nFP: FP\n")
			restored, err := FromRecord(f.Record())
			So(err, ShouldBeNil)
			So(restored, ShouldResemble, f)
		})

		Convey("rename", func() {
			f.Rename(map[string]string{"FB": "Brent"})
			So(f.Columns(), ShouldResemble, []string{"Brent", "FP"})
			So(f.Column("Brent"), ShouldResemble, []float64{10.0, 11.0, 12.0})
			So(f.Column("FB"), ShouldBeNil)
		})

		Convey("select", func() {
			sel, err := f.Select("FP")
			So(err, ShouldBeNil)
			So(sel.Columns(), ShouldResemble, []string{"FP"})
			So(sel.Column("FP"), ShouldResemble, []float64{100.0, 110.0, 120.0})
			_, err = f.Select("XX")
			So(err, ShouldNotBeNil)
		})

		Convey("add column", func() {
			So(f.AddColumn("Spread", []float64{90.0, 99.0, 108.0}), ShouldBeNil)
			So(f.Columns(), ShouldResemble, []string{"FB", "FP", "Spread"})
			So(f.AddColumn("FB", []float64{0, 0, 0}), ShouldNotBeNil)
			So(f.AddColumn("Short", []float64{0}), ShouldNotBeNil)
		})
	})

	Convey("Merge", t, func() {
		cached, err := NewFromRows([]string{"FB"}, dates, [][]float64{
			{10.0}, {11.0}, {12.0},
		})
		So(err, ShouldBeNil)
		fresh, err := NewFromRows([]string{"FB", "FP"},
			[]db.Date{db.NewDate(2020, 1, 6), db.NewDate(2020, 1, 7)},
			[][]float64{
				{12.5, 120.0},
				{13.0, 130.0},
			})
		So(err, ShouldBeNil)

		merged := cached.Merge(fresh)
		So(merged.Check(), ShouldBeNil)

		Convey("dates are the union without duplicates", func() {
			So(merged.Dates(), ShouldResemble, []db.Date{
				db.NewDate(2020, 1, 2),
				db.NewDate(2020, 1, 3),
				db.NewDate(2020, 1, 6),
				db.NewDate(2020, 1, 7),
			})
		})

		Convey("fresh values win on overlap", func() {
			So(merged.Column("FB"), ShouldResemble, []float64{10.0, 11.0, 12.5, 13.0})
		})

		Convey("columns only in fresh are NaN on old dates", func() {
			fp := merged.Column("FP")
			So(math.IsNaN(fp[0]), ShouldBeTrue)
			So(math.IsNaN(fp[1]), ShouldBeTrue)
			So(fp[2], ShouldEqual, 120.0)
			So(fp[3], ShouldEqual, 130.0)
		})

		Convey("the receiver is unchanged", func() {
			So(cached.NumRows(), ShouldEqual, 3)
			So(cached.Column("FB"), ShouldResemble, []float64{10.0, 11.0, 12.0})
		})
	})

	Convey("DropEmptyRows", t, func() {
		f, err := NewFromRows([]string{"A", "B"}, dates, [][]float64{
			{1.0, math.NaN()},
			{math.NaN(), math.NaN()},
			{math.NaN(), 2.0},
		})
		So(err, ShouldBeNil)
		dropped := f.DropEmptyRows()
		So(dropped.Dates(), ShouldResemble, []db.Date{
			db.NewDate(2020, 1, 2),
			db.NewDate(2020, 1, 6),
		})
		So(dropped.Value(0, "A"), ShouldEqual, 1.0)
		So(dropped.Value(1, "B"), ShouldEqual, 2.0)
	})

	Convey("ResampleMonthStart", t, func() {
		f, err := NewFromRows([]string{"A"}, []db.Date{
			db.NewDate(2020, 1, 2),
			db.NewDate(2020, 1, 3),
			db.NewDate(2020, 2, 3),
		}, [][]float64{{10.0}, {12.0}, {20.0}})
		So(err, ShouldBeNil)
		monthly := f.ResampleMonthStart()
		So(monthly.Dates(), ShouldResemble, []db.Date{
			db.NewDate(2020, 1, 1),
			db.NewDate(2020, 2, 1),
		})
		So(testutil.Round(monthly.Value(0, "A"), 4), ShouldEqual, 11.0)
		So(testutil.Round(monthly.Value(1, "A"), 4), ShouldEqual, 20.0)
	})

	Convey("Writers", t, func() {
		f, err := NewFromRows([]string{"FB"},
			[]db.Date{db.NewDate(2020, 1, 2), db.NewDate(2020, 1, 3)},
			[][]float64{{10.0}, {math.NaN()}})
		So(err, ShouldBeNil)

		Convey("CSV", func() {
			var buf bytes.Buffer
			So(f.WriteCSV(&buf, Params{}), ShouldBeNil)
			So(buf.String(), ShouldEqual, "Date,FB\n2020-01-02,10\n2020-01-03,\n")
		})

		Convey("CSV respects Params", func() {
			var buf bytes.Buffer
			So(f.WriteCSV(&buf, Params{Rows: 1, NoHeader: true}), ShouldBeNil)
			So(buf.String(), ShouldEqual, "2020-01-02,10\n")
		})

		Convey("text table pads columns", func() {
			var buf bytes.Buffer
			So(f.WriteText(&buf, Params{}), ShouldBeNil)
			So(buf.String(), ShouldEqual, `      Date | FB
---------- | --
2020-01-02 | 10
2020-01-03 |
`)
		})
	})
}
