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

// Command limq runs queries against the data service and prints the result
// as a text table or CSV. Credentials come from the environment (LIMSERVER,
// LIMUSERNAME, LIMPASSWORD, optionally from a .env file), further settings
// from an optional TOML config.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/golim/golim/db"
	"github.com/golim/golim/frame"
	"github.com/golim/golim/lim"
)

type Flags struct {
	Config   string // optional TOML config file
	Cache    string // overrides the config's cache dir
	LogLevel logging.Level
	// Exactly one of query, series or curve must be present.
	Query  string // raw query text to run as is
	Series string // comma-separated symbols to fetch as time series
	Curve  string // comma-separated symbols to fetch the latest curve for
	Start  string // start date for -series
	Column string // data column for -curve; default: Close
	CSV    bool   // dump CSV format; default: text
	Rows   int    // max rows to print; 0 = all
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("limq", flag.ExitOnError)
	fs.StringVar(&flags.Config, "config", "", "path to TOML config file")
	fs.StringVar(&flags.Cache, "cache", "", "path to the result cache")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Query, "q", "", "raw query text to run verbatim")
	fs.StringVar(&flags.Series, "series", "", "comma-separated symbols to fetch")
	fs.StringVar(&flags.Curve, "curve", "",
		"comma-separated symbols to fetch the latest forward curve for")
	fs.StringVar(&flags.Start, "start", "", "start date for -series, e.g. 2020-01-01")
	fs.StringVar(&flags.Column, "column", "", "data column for -curve; default: Close")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	fs.IntVar(&flags.Rows, "rows", 0, "max. number of rows to print; default: all")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	kinds := 0
	if flags.Query != "" {
		kinds++
	}
	if flags.Series != "" {
		kinds++
	}
	if flags.Curve != "" {
		kinds++
	}
	if kinds != 1 {
		return nil, errors.Reason("expected exactly one of -q, -series or -curve")
	}
	return &flags, err
}

func newClient(flags *Flags) (*lim.Client, error) {
	cfg, err := lim.ConfigFromEnv()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read credentials")
	}
	if flags.Config != "" {
		if err := cfg.ApplyFile(flags.Config); err != nil {
			return nil, errors.Annotate(err, "failed to read config %s", flags.Config)
		}
	}
	if flags.Cache != "" {
		cfg.CacheDir = flags.Cache
	}
	return lim.New(cfg)
}

func splitSymbols(s string) []string {
	var symbols []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			symbols = append(symbols, p)
		}
	}
	return symbols
}

func fetch(ctx context.Context, c *lim.Client, flags *Flags) (*frame.Frame, error) {
	if flags.Query != "" {
		return c.CachedQuery(ctx, flags.Query)
	}
	if flags.Series != "" {
		var start db.Date
		if flags.Start != "" {
			var err error
			if start, err = db.NewDateFromString(flags.Start); err != nil {
				return nil, errors.Annotate(err, "malformed -start date")
			}
		}
		return c.Series(ctx, splitSymbols(flags.Series), start)
	}
	return c.Curve(ctx, splitSymbols(flags.Curve), flags.Column, nil, "")
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	c, err := newClient(flags)
	if err != nil {
		return err
	}
	f, err := fetch(ctx, c, flags)
	if err != nil {
		return errors.Annotate(err, "failed to fetch data")
	}
	p := frame.Params{Rows: flags.Rows}
	if flags.CSV {
		if err := f.WriteCSV(w, p); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := f.WriteText(w, p); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
