package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar date without timezone, stored at UTC midnight.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day. Out of range components
// overflow into adjacent months like time.Date does; use ParseDate for
// validated input.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	return nil
}

// SameMonth reports whether both dates fall in the same year and month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

// ParseDate parses a roster month in DD/MM/YYYY form. Day and month may be
// written without zero padding. Components outside the calendar (month 13,
// 31/04) are rejected instead of rolling over.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q is not DD/MM/YYYY", ErrInvalidDate, s)
	}
	day, err := parseDateComponent(parts[0], 2)
	if err != nil {
		return Date{}, fmt.Errorf("%w: day in %q", ErrInvalidDate, s)
	}
	month, err := parseDateComponent(parts[1], 2)
	if err != nil {
		return Date{}, fmt.Errorf("%w: month in %q", ErrInvalidDate, s)
	}
	year, err := parseDateComponent(parts[2], 4)
	if err != nil {
		return Date{}, fmt.Errorf("%w: year in %q", ErrInvalidDate, s)
	}
	return checkedDate(s, year, month, day)
}

// ParseISODate parses a YYYY-MM-DD date as produced by HTML date inputs.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// FormatDate formats a date as zero-padded DD/MM/YYYY.
func FormatDate(d Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day(), d.Month(), d.Year())
}

// FormatYear returns the 4-digit year of d.
func FormatYear(d Date) string {
	return fmt.Sprintf("%04d", d.Year())
}

func parseDateComponent(s string, maxDigits int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxDigits {
		return 0, ErrInvalidDate
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidDate
		}
	}
	return strconv.Atoi(s)
}

func checkedDate(raw string, year, month, day int) (Date, error) {
	if year < 1 {
		return Date{}, fmt.Errorf("%w: year out of range in %q", ErrInvalidDate, raw)
	}
	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("%w: month out of range in %q", ErrInvalidDate, raw)
	}
	d := NewDate(year, month, day)
	if day < 1 || d.Day() != day || d.Month() != month {
		return Date{}, fmt.Errorf("%w: day out of range in %q", ErrInvalidDate, raw)
	}
	return d, nil
}
