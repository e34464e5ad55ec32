// Package core holds the capacity roster domain and the projection that
// carries each employee's latest capacity onto a target month.
package core

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultCollation orders names when Options.Collation is unset. Roster
// headers are French (Nom;Capacité;Mois;Année;BU).
var DefaultCollation = language.French

// SkipReason explains why a data row was left out of the projection.
type SkipReason string

const (
	SkipEmptyName    SkipReason = "empty_name"
	SkipInvalidMonth SkipReason = "invalid_month"
)

// RowIssue describes a data row that was not accepted.
type RowIssue struct {
	Line   int // 1-based among non-blank lines, header is line 1
	Reason SkipReason
	Raw    string
}

// Options tunes a projection. The zero value reproduces the classic
// behavior: French collation, one new row per name on every run.
type Options struct {
	Collation language.Tag
	// SkipExisting suppresses the new row for names whose latest entry
	// already falls in the target month, making re-runs idempotent.
	SkipExisting bool
}

// Projection is the outcome of Project.
type Projection struct {
	Content       string
	OriginalCount int
	AddedCount    int
	Skipped       []RowIssue
}

// RowCount is the number of data rows in Content.
func (p Projection) RowCount() int {
	return countDataRows(p.Content)
}

type datedEntry struct {
	entry CapacityEntry
	month Date
}

// Project appends, for every employee, a copy of their latest entry dated
// target and returns the re-sorted roster. The header line is kept verbatim.
func Project(raw string, target Date, opts Options) (Projection, error) {
	lines := splitLines(raw)
	if len(lines) < 2 {
		return Projection{}, ErrEmptyInput
	}
	header := lines[0]

	var (
		entries []datedEntry
		skipped []RowIssue
	)
	for i, line := range lines[1:] {
		e := parseRow(line)
		if e.Name == "" {
			skipped = append(skipped, RowIssue{Line: i + 2, Reason: SkipEmptyName, Raw: line})
			continue
		}
		month, err := ParseDate(e.Month)
		if err != nil {
			skipped = append(skipped, RowIssue{Line: i + 2, Reason: SkipInvalidMonth, Raw: line})
			continue
		}
		entries = append(entries, datedEntry{entry: e, month: month})
	}

	// Latest entry per name, in first-appearance order. Only a strictly
	// later month replaces the current pick, so on equal months the first
	// row read stays.
	latest := make(map[string]datedEntry, len(entries))
	var order []string
	for _, de := range entries {
		cur, ok := latest[de.entry.Name]
		if !ok {
			order = append(order, de.entry.Name)
			latest[de.entry.Name] = de
			continue
		}
		if de.month.After(cur.month.Time) {
			latest[de.entry.Name] = de
		}
	}

	targetMonth := FormatDate(target)
	targetYear := FormatYear(target)
	added := make([]datedEntry, 0, len(order))
	for _, name := range order {
		l := latest[name]
		if opts.SkipExisting && l.month.SameMonth(target) {
			continue
		}
		added = append(added, datedEntry{
			entry: CapacityEntry{
				Name:         l.entry.Name,
				Capacity:     l.entry.Capacity,
				Month:        targetMonth,
				Year:         targetYear,
				BusinessUnit: l.entry.BusinessUnit,
			},
			month: target,
		})
	}

	all := make([]datedEntry, 0, len(entries)+len(added))
	all = append(all, entries...)
	all = append(all, added...)
	sortEntries(all, opts.collation())

	out := make([]CapacityEntry, len(all))
	for i, de := range all {
		out[i] = de.entry
	}

	return Projection{
		Content:       serialize(header, out),
		OriginalCount: len(entries),
		AddedCount:    len(added),
		Skipped:       skipped,
	}, nil
}

func (o Options) collation() language.Tag {
	if o.Collation == language.Und {
		return DefaultCollation
	}
	return o.Collation
}

// sortEntries orders by name under the locale collation, then by month.
// The sort is stable so equal keys keep input order.
func sortEntries(all []datedEntry, tag language.Tag) {
	col := collate.New(tag)
	slices.SortStableFunc(all, func(a, b datedEntry) int {
		if c := col.CompareString(a.entry.Name, b.entry.Name); c != 0 {
			return c
		}
		return a.month.Compare(b.month.Time)
	})
}

// ParseCollation maps a locale name such as "fr" or "en-GB" to a tag,
// falling back to DefaultCollation.
func ParseCollation(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return DefaultCollation
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return DefaultCollation
	}
	return tag
}
