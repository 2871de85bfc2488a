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
	"regexp"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/golim/golim/db"
	"github.com/golim/golim/frame"
)

// incrementalLookbackDays re-fetches the trailing days of a cached result, so
// that preliminary prints corrected by the service after the fact are picked
// up on the next run.
const incrementalLookbackDays = 5

var dateAfterRe = regexp.MustCompile(`(?i)date\s+is\s+after`)
var whenRe = regexp.MustCompile(`(?i)\bwhen\b`)

// hasDateAfter reports whether the query already constrains its start date,
// in which case narrowing it further would change its meaning.
func hasDateAfter(query string) bool {
	return dateAfterRe.MatchString(query)
}

// appendDateFilter narrows the query to rows after the cut date, either by
// extending an existing WHEN clause or by adding one.
func appendDateFilter(query string, cut db.Date) string {
	if whenRe.MatchString(query) {
		return query + " and date is after " + cut.US()
	}
	return query + "\nwhen date is after " + cut.US()
}

// CachedQuery runs the query through the on-disk result cache: a cache hit
// narrows the request to the trailing window past the cached data, and the
// fresh rows are merged over the cached ones. Without a configured cache
// directory it is equivalent to Query. The merged result is keyed and saved
// under the original query text.
func (c *Client) CachedQuery(ctx context.Context, query string) (*frame.Frame, error) {
	if c.store == nil {
		return c.Query(ctx, query)
	}
	var rec db.FrameRecord
	ok, err := c.store.Load(query, &rec)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load cached result")
	}
	if !ok {
		f, err := c.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		if err := c.store.Save(query, f.Record()); err != nil {
			return nil, errors.Annotate(err, "failed to save result to cache")
		}
		return f, nil
	}
	cached, err := frame.FromRecord(&rec)
	if err != nil {
		return nil, errors.Annotate(err, "corrupted cached result")
	}
	narrowed := query
	if dates := cached.Dates(); len(dates) > 0 && !hasDateAfter(query) {
		cut := dates[len(dates)-1].AddDays(-incrementalLookbackDays)
		narrowed = appendDateFilter(query, cut)
		logging.Debugf(ctx, "cache hit, re-fetching after %s", cut)
	}
	fresh, err := c.Query(ctx, narrowed)
	if err != nil {
		return nil, err
	}
	merged := cached.Merge(fresh)
	merged.SetQuery(query)
	if err := c.store.Save(query, merged.Record()); err != nil {
		return nil, errors.Annotate(err, "failed to save result to cache")
	}
	return merged, nil
}
