package model

import "strings"

type Kind string

const (
	KindGeneric     Kind = "generic"
	KindBirthday    Kind = "birthday"
	KindAnniversary Kind = "anniversary"
	KindAnnounce    Kind = "announce"
	KindOther       Kind = "other"
)

// ParseKind classifies a free-text campaign type by case-insensitive substring.
func ParseKind(label string) Kind {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "birthday"):
		return KindBirthday
	case strings.Contains(l, "anniversary"):
		return KindAnniversary
	case strings.Contains(l, "announce"):
		return KindAnnounce
	case l == "" || l == "campaign":
		return KindGeneric
	default:
		return KindOther
	}
}

// DateExempt reports whether the kind is scheduled by a date match or a
// one-shot announcement rather than by SMS recency.
func (k Kind) DateExempt() bool {
	return k == KindBirthday || k == KindAnniversary || k == KindAnnounce
}

const DefaultRank = 999

// Campaign is one row of the campaign sheet.
type Campaign struct {
	Row       int
	Template  string
	CharLimit int // 0 means no limit
	Kind      Kind
	Label     string
	Rank      int

	LastVisitDays *int
	LastSMSDays   *int

	// BirthdayOffsetDays is how many days ahead of the birthday a birthday
	// campaign fires.
	BirthdayOffsetDays *int

	ProcessedDate   string
	ProcessedStatus string
}

// BirthdayOffset returns the day offset for birthday matching. Older campaign
// sheets carry the offset in the last-SMS-days column, so that value is used
// when no explicit offset is set.
func (c Campaign) BirthdayOffset() int {
	if c.BirthdayOffsetDays != nil {
		return *c.BirthdayOffsetDays
	}
	if c.LastSMSDays != nil {
		return *c.LastSMSDays
	}
	return 0
}

func (c Campaign) IsProcessed() bool {
	return strings.TrimSpace(c.ProcessedDate) != "" && strings.TrimSpace(c.ProcessedStatus) != ""
}
