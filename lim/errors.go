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
	"errors"
	"fmt"
)

// Status codes reported by the service in the response's status attribute.
const (
	StatusOK           = 100
	StatusInvalidQuery = 110
	StatusNoData       = 130
	StatusProcessing   = 200
)

// ErrOutOfTries is returned when the poll attempt budget is exhausted without
// the service reaching a terminal status.
var ErrOutOfTries = errors.New("run out of tries")

// TransportError is an HTTP-layer failure: either the connection failed or
// the server answered with a non-2xx HTTP status before the service protocol
// could be parsed. Transport failures are never retried.
type TransportError struct {
	StatusCode int // 0 when the connection itself failed
	URL        string
	Err        error // underlying error, when any
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %s", e.URL, e.Err.Error())
	}
	return fmt.Sprintf("HTTP %d for url: %s", e.StatusCode, e.URL)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-success, non-processing status reported by the
// service for a data request. It carries the service's message and the
// request URL so failures can be diagnosed without re-running.
type StatusError struct {
	Status  int
	Message string
	URL     string
	Query   string // the query text that produced the failure
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d Client Error: %s for url: %s", e.Status, e.Message, e.URL)
}

// IsInvalidQuery reports whether the service rejected the query text itself.
func (e *StatusError) IsInvalidQuery() bool { return e.Status == StatusInvalidQuery }

// SchemaError is a non-success status reported by the schema/relations
// endpoint.
type SchemaError struct {
	Status  int
	Message string
	URL     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("relation lookup failed with status %d: %s for url: %s",
		e.Status, e.Message, e.URL)
}
