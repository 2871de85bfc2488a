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

// Package db implements the on-disk store for fetched query results. Entries
// are gob files keyed by a content hash of the original query text, so
// repeated runs of the same logical request share one persisted table.
package db

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/stockparfait/errors"
)

// FrameRecord is the serialized form of a result table: row dates, column
// names and per-column values aligned with the dates. The query text that
// produced the table is stored for provenance.
type FrameRecord struct {
	Query   string
	Columns []string
	Dates   []Date
	Data    [][]float64 // indexed by column, aligned with Dates
}

// Store is a flat directory of gob-encoded entries. It has no eviction policy
// and no size bound; entries persist until removed externally or through
// Remove. Concurrent writers of the same key require external serialization.
type Store struct {
	dir string
}

// NewStore creates the store directory if needed and returns the Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Annotate(err, "failed to create store directory '%s'", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Key derives the file key for a query text.
func (s *Store) Key(query string) string {
	h := sha256.Sum256([]byte(query))
	return hex.EncodeToString(h[:])
}

func (s *Store) path(query string) string {
	return filepath.Join(s.dir, s.Key(query)+".gob")
}

func writeGob(fileName string, v interface{}) error {
	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Annotate(err, "failed to open file for writing: '%s'", fileName)
	}
	defer f.Close()
	enc := gob.NewEncoder(f)
	if err = enc.Encode(v); err != nil {
		return errors.Annotate(err, "failed to write to '%s'", fileName)
	}
	return nil
}

func readGob(fileName string, v interface{}) error {
	f, err := os.Open(fileName)
	if err != nil {
		return errors.Annotate(err, "failed to open file for reading: '%s'", fileName)
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	if err = dec.Decode(v); err != nil {
		return errors.Annotate(err, "failed to read from '%s'", fileName)
	}
	return nil
}

// Load reads the entry for the query into v. The first return value is false
// when no entry exists.
func (s *Store) Load(query string, v interface{}) (bool, error) {
	fileName := s.path(query)
	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		return false, nil
	}
	if err := readGob(fileName, v); err != nil {
		return false, errors.Annotate(err, "failed to load entry for query")
	}
	return true, nil
}

// Save writes the entry for the query, replacing any previous value.
func (s *Store) Save(query string, v interface{}) error {
	if err := writeGob(s.path(query), v); err != nil {
		return errors.Annotate(err, "failed to save entry for query")
	}
	return nil
}

// Remove deletes the entry for the query. Removing a missing entry is not an
// error.
func (s *Store) Remove(query string) error {
	err := os.Remove(s.path(query))
	if err != nil && !os.IsNotExist(err) {
		return errors.Annotate(err, "failed to remove entry for query")
	}
	return nil
}
