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

package db

import (
	"io/ioutil"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	t.Parallel()
	tmpdir, tmpdirErr := ioutil.TempDir("", "teststore")
	defer os.RemoveAll(tmpdir)

	Convey("Test setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("Store round-trips entries", t, func() {
		store, err := NewStore(tmpdir)
		So(err, ShouldBeNil)

		query := "Show \nFB: FB\n"
		rec := FrameRecord{
			Query:   query,
			Columns: []string{"FB"},
			Dates:   []Date{NewDate(2020, 1, 2), NewDate(2020, 1, 3)},
			Data:    [][]float64{{10.0, 11.0}},
		}

		Convey("save and load", func() {
			So(store.Save(query, &rec), ShouldBeNil)
			var loaded FrameRecord
			ok, err := store.Load(query, &loaded)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(loaded, ShouldResemble, rec)
		})

		Convey("load of a missing entry", func() {
			var loaded FrameRecord
			ok, err := store.Load("no such query", &loaded)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("the key depends only on the query text", func() {
			So(store.Key(query), ShouldEqual, store.Key(query))
			So(store.Key(query), ShouldNotEqual, store.Key(query+" "))
		})

		Convey("remove", func() {
			So(store.Save(query, &rec), ShouldBeNil)
			So(store.Remove(query), ShouldBeNil)
			var loaded FrameRecord
			ok, err := store.Load(query, &loaded)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(store.Remove(query), ShouldBeNil) // second remove is a no-op
		})
	})
}
