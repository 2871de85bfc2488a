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
	stderrors "errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/golim/golim/frame"
)

const requestsEndpoint = "/rs/api/datarequests"

type dataRequest struct {
	XMLName xml.Name `xml:"DataRequest"`
	Text    string   `xml:"Query>Text"`
}

// errNotComplete is the internal retryable signal for the PROCESSING status.
var errNotComplete = stderrors.New("not complete")

func transportCheck(resp *resty.Response, err error) error {
	if err != nil {
		url := ""
		if resp != nil && resp.Request != nil {
			url = resp.Request.URL
		}
		return &TransportError{URL: url, Err: err}
	}
	if resp.IsError() {
		return &TransportError{StatusCode: resp.StatusCode(), URL: resp.Request.URL}
	}
	return nil
}

// handleResponse maps a parsed service response to its outcome. The second
// return value is false while the request is still processing.
func (c *Client) handleResponse(ctx context.Context, r *response, query, url string) (*frame.Frame, bool, error) {
	switch r.Status {
	case StatusOK:
		f, err := r.decodeFrame(query)
		if err != nil {
			return nil, true, errors.Annotate(err, "failed to decode report")
		}
		return f, true, nil
	case StatusNoData:
		logging.Infof(ctx, "no data")
		return emptyFrame(query), true, nil
	case StatusProcessing:
		return nil, false, nil
	default:
		// Includes StatusInvalidQuery; the service's message is never dropped.
		return nil, true, &StatusError{
			Status:  r.Status,
			Message: r.Message,
			URL:     url,
			Query:   query,
		}
	}
}

// Query submits the query text and drives the request to completion: it
// polls the service-assigned job until a terminal status, pausing for the
// configured interval between poll attempts (but not before the first one).
// A "no data" outcome is not an error: the result is an empty Frame tagged
// with the query text. The call blocks for the whole submit-and-poll cycle.
func (c *Client) Query(ctx context.Context, query string) (*frame.Frame, error) {
	body, err := xml.Marshal(dataRequest{Text: query})
	if err != nil {
		return nil, errors.Annotate(err, "failed to encode request")
	}
	resp, err := c.rest.R().SetContext(ctx).SetBody(body).Post(requestsEndpoint)
	if terr := transportCheck(resp, err); terr != nil {
		return nil, terr
	}
	r, err := parseResponse(resp.Body())
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse submission response")
	}
	f, terminal, err := c.handleResponse(ctx, r, query, resp.Request.URL)
	if terminal {
		return f, err
	}
	if r.ID == 0 {
		return nil, errors.Reason("processing response carries no job id")
	}
	jobID := r.ID
	logging.Infof(ctx, "job %d not complete, starting to poll...", jobID)

	var result *frame.Frame
	poll := func() error {
		pr, err := c.rest.R().SetContext(ctx).
			Get(fmt.Sprintf("%s/%d", requestsEndpoint, jobID))
		if terr := transportCheck(pr, err); terr != nil {
			return backoff.Permanent(terr)
		}
		r, err := parseResponse(pr.Body())
		if err != nil {
			return backoff.Permanent(
				errors.Annotate(err, "failed to parse poll response"))
		}
		f, terminal, err := c.handleResponse(ctx, r, query, pr.Request.URL)
		if !terminal {
			logging.Debugf(ctx, "job %d not complete", jobID)
			if r.ID != 0 {
				jobID = r.ID
			}
			return errNotComplete
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		result = f
		return nil
	}
	if err := backoff.Retry(poll, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		if stderrors.Is(err, errNotComplete) {
			return nil, ErrOutOfTries
		}
		return nil, err
	}
	return result, nil
}
