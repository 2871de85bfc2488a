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
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stockparfait/testutil"

	"github.com/golim/golim/db"

	. "github.com/smartystreets/goconvey/convey"
)

// countingBackOff pauses for no time and records how often the poll loop
// asked for a pause.
type countingBackOff struct {
	waits int
}

func (b *countingBackOff) NextBackOff() time.Duration { b.waits++; return 0 }
func (b *countingBackOff) Reset()                     {}

const testReport = `<DataResponse status="100">
  <Reports>
    <Report>
      <TableResult>
        <ColumnHeadings>FB</ColumnHeadings>
        <ColumnHeadings>FP</ColumnHeadings>
        <RowDates>2020-01-02T00:00:00</RowDates>
        <RowDates>2020-01-03T00:00:00</RowDates>
        <Values>10</Values>
        <Values>100</Values>
        <Values>11</Values>
        <Values>110</Values>
      </TableResult>
    </Report>
  </Reports>
</DataResponse>`

const testProcessing = `<DataResponse status="200" id="7"/>`

func TestQuery(t *testing.T) {
	t.Parallel()

	Convey("Query drives a request to completion", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		ctx := context.Background()

		c, err := New(&Config{Server: server.URL(), Username: "test", Password: "pwd"})
		So(err, ShouldBeNil)
		c.SetTransport(server.Client())
		bo := &countingBackOff{}
		c.SetBackOff(func() backoff.BackOff {
			return backoff.WithMaxRetries(bo, 3)
		})
		query := "Show \nFB: FB\nFP: FP\nwhen date is after 01/01/2019\n"

		Convey("immediate completion", func() {
			server.ResponseBody = []string{testReport}
			f, err := c.Query(ctx, query)
			So(err, ShouldBeNil)
			So(server.RequestPath, ShouldEqual, "/rs/api/datarequests")
			So(f.Query(), ShouldEqual, query)
			So(f.Columns(), ShouldResemble, []string{"FB", "FP"})
			So(f.Dates(), ShouldResemble, []db.Date{
				db.NewDate(2020, 1, 2),
				db.NewDate(2020, 1, 3),
			})
			So(f.Column("FB"), ShouldResemble, []float64{10.0, 11.0})
			So(f.Column("FP"), ShouldResemble, []float64{100.0, 110.0})
			So(bo.waits, ShouldEqual, 0)
		})

		Convey("completion after polling", func() {
			server.ResponseBody = []string{testProcessing, testProcessing, testReport}
			f, err := c.Query(ctx, query)
			So(err, ShouldBeNil)
			So(f.Columns(), ShouldResemble, []string{"FB", "FP"})
			So(server.RequestPath, ShouldEqual, "/rs/api/datarequests/7")
			// No pause before the first poll, one before each subsequent one.
			So(bo.waits, ShouldEqual, 1)
		})

		Convey("no data yields an empty frame, not an error", func() {
			server.ResponseBody = []string{`<DataResponse status="130"/>`}
			f, err := c.Query(ctx, query)
			So(err, ShouldBeNil)
			So(f.Empty(), ShouldBeTrue)
			So(f.Query(), ShouldEqual, query)
		})

		Convey("invalid query", func() {
			server.ResponseBody = []string{
				`<DataResponse status="110" statusMsg="Syntax error: unknown symbol"/>`}
			_, err := c.Query(ctx, query)
			se, ok := err.(*StatusError)
			So(ok, ShouldBeTrue)
			So(se.IsInvalidQuery(), ShouldBeTrue)
			So(se.Message, ShouldEqual, "Syntax error: unknown symbol")
			So(se.Query, ShouldEqual, query)
		})

		Convey("unknown status", func() {
			server.ResponseBody = []string{
				`<DataResponse status="999" statusMsg="boom"/>`}
			_, err := c.Query(ctx, query)
			se, ok := err.(*StatusError)
			So(ok, ShouldBeTrue)
			So(se.Status, ShouldEqual, 999)
			So(se.IsInvalidQuery(), ShouldBeFalse)
		})

		Convey("failure status while polling is terminal", func() {
			server.ResponseBody = []string{testProcessing,
				`<DataResponse status="110" statusMsg="bad"/>`}
			_, err := c.Query(ctx, query)
			se, ok := err.(*StatusError)
			So(ok, ShouldBeTrue)
			So(se.IsInvalidQuery(), ShouldBeTrue)
		})

		Convey("running out of tries", func() {
			server.ResponseBody = []string{testProcessing, testProcessing,
				testProcessing, testProcessing, testProcessing}
			_, err := c.Query(ctx, query)
			So(err, ShouldEqual, ErrOutOfTries)
		})

		Convey("processing response without a job id", func() {
			server.ResponseBody = []string{`<DataResponse status="200"/>`}
			_, err := c.Query(ctx, query)
			So(err, ShouldNotBeNil)
		})

		Convey("malformed response", func() {
			server.ResponseBody = []string{`<DataResponse foo="bar"/>`}
			_, err := c.Query(ctx, query)
			So(err, ShouldNotBeNil)
		})

		Convey("a report with misaligned values fails to decode", func() {
			server.ResponseBody = []string{`<DataResponse status="100">
  <Reports>
    <ColumnHeadings>FB</ColumnHeadings>
    <RowDates>2020-01-02</RowDates>
    <Values>10</Values>
    <Values>11</Values>
  </Reports>
</DataResponse>`}
			_, err := c.Query(ctx, query)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Config", t, func() {
		Convey("New requires a server", func() {
			_, err := New(&Config{})
			So(err, ShouldNotBeNil)
		})

		Convey("defaults are applied", func() {
			c, err := New(&Config{Server: "http://localhost"})
			So(err, ShouldBeNil)
			So(c.tries, ShouldEqual, uint64(DefaultTries))
			So(c.interval, ShouldEqual, 2500*time.Millisecond)
			So(c.Store(), ShouldBeNil)
		})
	})
}
