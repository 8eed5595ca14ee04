package render

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LeventeLantos/sms-campaign/internal/dates"
	"github.com/LeventeLantos/sms-campaign/internal/model"
)

const ellipsis = "..."

// Renderer fills campaign templates with customer fields.
//
// Two placeholder forms are supported: {key}, where key is a logical field
// bound through the column mapping, and #Column, matched case-insensitively
// against the record's own column names. Placeholders without a value are left
// in place.
type Renderer struct {
	keys     map[string]string
	dateCols map[string]struct{}
	loc      *time.Location

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func New(cols model.CustomerColumns) *Renderer {
	dc := make(map[string]struct{})
	for _, c := range cols.DateColumns() {
		if c != "" {
			dc[c] = struct{}{}
		}
	}
	keys := make(map[string]string)
	for _, ph := range cols.Placeholders() {
		if ph.Column != "" {
			keys[ph.Key] = ph.Column
		}
	}
	return &Renderer{
		keys:     keys,
		dateCols: dc,
		loc:      time.UTC,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Render resolves both placeholder forms in a single scan of the template, so
// substituted values are never expanded again.
func (r *Renderer) Render(c model.Campaign, rec model.Record) string {
	names := make([]string, 0, len(rec))
	for col := range rec {
		if col != "" {
			names = append(names, col)
		}
	}
	// Longer names first so #first_name is not consumed by a #first column.
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	byFold := make(map[string]string, len(names))
	for _, col := range names {
		if _, ok := byFold[strings.ToLower(col)]; !ok {
			byFold[strings.ToLower(col)] = col
		}
	}

	p := r.pattern(names)
	if p == nil {
		return Truncate(c.Template, c.CharLimit)
	}
	msg := p.ReplaceAllStringFunc(c.Template, func(m string) string {
		var col string
		if strings.HasPrefix(m, "{") {
			col = r.keys[m[1:len(m)-1]]
		} else {
			col = byFold[strings.ToLower(m[1:])]
		}
		v, ok := rec.Value(col)
		if !ok {
			return m
		}
		return r.display(col, v)
	})

	return Truncate(msg, c.CharLimit)
}

// Truncate caps msg at limit characters, ending in "..." when cut. A limit of
// zero or less means no cap.
func Truncate(msg string, limit int) string {
	if limit <= 0 {
		return msg
	}
	runes := []rune(msg)
	if len(runes) <= limit {
		return msg
	}
	if limit <= len(ellipsis) {
		return ellipsis[:limit]
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}

func (r *Renderer) display(col, v string) string {
	if _, ok := r.dateCols[col]; !ok {
		return v
	}
	t, ok := dates.Parse(v, r.loc)
	if !ok {
		return v
	}
	return dates.Long(t)
}

// pattern matches every {key} and every #Column of the given record columns,
// or is nil when there is nothing to match. Columns must already be ordered
// longest first since alternation takes the first branch that matches.
func (r *Renderer) pattern(names []string) *regexp.Regexp {
	id := strings.Join(names, "\x00")

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.patterns[id]; ok {
		return p
	}

	keys := make([]string, 0, len(r.keys))
	for k := range r.keys {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	sort.Strings(keys)

	var alts []string
	if len(keys) > 0 {
		alts = append(alts, `\{(?:`+strings.Join(keys, "|")+`)\}`)
	}
	if len(names) > 0 {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = regexp.QuoteMeta(n)
		}
		alts = append(alts, `(?i:#(?:`+strings.Join(quoted, "|")+`))`)
	}
	var p *regexp.Regexp
	if len(alts) > 0 {
		p = regexp.MustCompile(strings.Join(alts, "|"))
	}
	r.patterns[id] = p
	return p
}
