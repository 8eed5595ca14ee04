package model

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Record is one customer row keyed by column name. A blank cell is treated as
// missing.
type Record map[string]string

func (r Record) Value(col string) (string, bool) {
	v, ok := r[col]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Roster is an ordered collection of customer records. After merge and
// dedup no two records share a phone key.
type Roster struct {
	Columns []string
	Records []Record
}

// Table is the header-plus-rows shape every sheet is read into. Campaign
// sheets use it as-is; customer sheets are Rosters.
type Table = Roster

func NewRoster(columns []string, records ...Record) *Roster {
	return &Roster{
		Columns: slices.Clone(columns),
		Records: records,
	}
}

func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Records)
}

func (r *Roster) HasColumn(col string) bool {
	return r != nil && slices.Contains(r.Columns, col)
}

// EnsureColumn appends col to the header when it is not there yet.
func (r *Roster) EnsureColumn(col string) {
	if col == "" || r.HasColumn(col) {
		return
	}
	r.Columns = append(r.Columns, col)
}

func (r *Roster) Clone() *Roster {
	if r == nil {
		return nil
	}
	out := &Roster{
		Columns: slices.Clone(r.Columns),
		Records: make([]Record, len(r.Records)),
	}
	for i, rec := range r.Records {
		out.Records[i] = rec.Clone()
	}
	return out
}

// Find returns the first record whose col equals value.
func (r *Roster) Find(col, value string) (Record, bool) {
	if r == nil {
		return nil, false
	}
	for _, rec := range r.Records {
		if rec[col] == value {
			return rec, true
		}
	}
	return nil, false
}

var fold = cases.Fold()

var optOutValues = map[string]struct{}{
	"yes":  {},
	"y":    {},
	"true": {},
}

// IsOptedOut reports whether a consent cell holds an opted-out value.
func IsOptedOut(v string) bool {
	_, ok := optOutValues[fold.String(strings.TrimSpace(v))]
	return ok
}

const (
	OptedOut = "Yes"
	OptedIn  = "No"
)
