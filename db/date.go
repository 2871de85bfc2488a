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
	"fmt"
	"time"

	"github.com/stockparfait/errors"
)

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05.999",
		"2006-01-02T15:04:05.999",
		"2006-01-02T15:04:05.999Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006",
		"2006/01/02",
	}
	var err error
	for _, f := range formats {
		var tm time.Time
		tm, err = time.Parse(f, s)
		if err == nil {
			return tm, nil
		}
	}
	return time.Time{}, err
}

// Date records a calendar date as year, month and day. The struct is designed
// to fit into 4 bytes.
type Date struct {
	YearVal  uint16
	MonthVal uint8
	DayVal   uint8
}

// NewDate is the constructor for Date.
func NewDate(year uint16, month, day uint8) Date {
	return Date{year, month, day}
}

// NewDateFromTime creates a Date instance from a time.Time value in UTC.
func NewDateFromTime(t time.Time) Date {
	return Date{
		YearVal:  uint16(t.Year()),
		MonthVal: uint8(t.Month()),
		DayVal:   uint8(t.Day()),
	}
}

// NewDateFromString creates a Date instance from a string representation. It
// accepts both the ISO formats emitted by the service in row timestamps and
// the US format used inside query text.
func NewDateFromString(s string) (Date, error) {
	t, err := parseTime(s)
	if err != nil {
		return Date{}, errors.Annotate(err, "failed to parse a Date string: '%s'", s)
	}
	return NewDateFromTime(t), nil
}

// Today returns the current date in UTC.
func Today() Date {
	return NewDateFromTime(time.Now().UTC())
}

func (d Date) Year() uint16 { return d.YearVal }
func (d Date) Month() uint8 { return d.MonthVal }
func (d Date) Day() uint8   { return d.DayVal }

// String representation of the value, ISO style.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), d.Month(), d.Day())
}

// US renders the date as MM/DD/YYYY, the convention for dates embedded in
// query text.
func (d Date) US() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Month(), d.Day(), d.Year())
}

// YMD renders the date as YYYY/MM/DD, the convention for curve history column
// labels.
func (d Date) YMD() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year(), d.Month(), d.Day())
}

// ToTime converts Date to Time in UTC.
func (d Date) ToTime() time.Time {
	return time.Date(int(d.Year()), time.Month(d.Month()), int(d.Day()), 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date shifted by the given number of days, which may be
// negative.
func (d Date) AddDays(days int) Date {
	return NewDateFromTime(d.ToTime().AddDate(0, 0, days))
}

// MonthStart returns the 1st of the month of the current date.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// LastBusinessDay returns the most recent weekday strictly before the date.
// The service's calendar of exchange holidays is not known client-side, so
// weekends are the only days skipped.
func (d Date) LastBusinessDay() Date {
	t := d.ToTime().AddDate(0, 0, -1)
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, -1)
	}
	return NewDateFromTime(t)
}

// Before compares two Date objects for strict inequality (self < d2).
func (d Date) Before(d2 Date) bool {
	if d.Year() != d2.Year() {
		return d.Year() < d2.Year()
	}
	if d.Month() != d2.Month() {
		return d.Month() < d2.Month()
	}
	return d.Day() < d2.Day()
}

// After compares two Date objects for strict inequality, self > d2.
func (d Date) After(d2 Date) bool {
	return d2.Before(d)
}

// IsZero checks whether the date has a zero value.
func (d Date) IsZero() bool {
	return d.Year() == 0 && d.Month() == 0 && d.Day() == 0
}
