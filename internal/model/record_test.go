package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValue_BlankIsMissing(t *testing.T) {
	t.Parallel()

	r := Record{"a": "  x ", "b": "   ", "c": ""}

	v, ok := r.Value("a")
	require.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = r.Value("b")
	assert.False(t, ok)
	_, ok = r.Value("c")
	assert.False(t, ok)
	_, ok = r.Value("missing")
	assert.False(t, ok)
}

func TestRosterClone_IsDeep(t *testing.T) {
	t.Parallel()

	orig := NewRoster([]string{"phone"}, Record{"phone": "+1"})
	cp := orig.Clone()
	cp.Records[0]["phone"] = "+2"
	cp.EnsureColumn("extra")

	assert.Equal(t, "+1", orig.Records[0]["phone"])
	assert.False(t, orig.HasColumn("extra"))
	assert.True(t, cp.HasColumn("extra"))
}

func TestIsOptedOut(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"yes", "Yes", "YES", " y ", "Y", "true", "TRUE"} {
		assert.True(t, IsOptedOut(v), "value %q", v)
	}
	for _, v := range []string{"", "no", "n", "false", "1", "stop", "yes please"} {
		assert.False(t, IsOptedOut(v), "value %q", v)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	cases := map[string]Kind{
		"":                 KindGeneric,
		"Campaign":         KindGeneric,
		"Birthday":         KindBirthday,
		"Early birthday":   KindBirthday,
		"ANNIVERSARY":      KindAnniversary,
		"Announcement":     KindAnnounce,
		"Reminder":         KindOther,
		"  birthday club ": KindBirthday,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseKind(in), "label %q", in)
	}
}

func TestCampaignBirthdayOffset(t *testing.T) {
	t.Parallel()

	seven, three := 7, 3

	assert.Equal(t, 0, Campaign{}.BirthdayOffset())
	assert.Equal(t, 7, Campaign{LastSMSDays: &seven}.BirthdayOffset(), "legacy column doubles as offset")
	assert.Equal(t, 3, Campaign{LastSMSDays: &seven, BirthdayOffsetDays: &three}.BirthdayOffset())
}

func TestCampaignIsProcessed(t *testing.T) {
	t.Parallel()

	assert.False(t, Campaign{}.IsProcessed())
	assert.False(t, Campaign{ProcessedDate: "2024-01-01"}.IsProcessed())
	assert.False(t, Campaign{ProcessedDate: "2024-01-01", ProcessedStatus: "  "}.IsProcessed())
	assert.True(t, Campaign{ProcessedDate: "2024-01-01", ProcessedStatus: "completed"}.IsProcessed())
}

func TestStatusSucceeded(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{Queued, Accepted, Sending, Sent, Delivered} {
		assert.True(t, s.Succeeded(), string(s))
	}
	for _, s := range []Status{Failed, Skipped, Status("undelivered"), Status("")} {
		assert.False(t, s.Succeeded(), string(s))
	}
}

func TestCustomerColumnsFrom(t *testing.T) {
	t.Parallel()

	c := CustomerColumnsFrom(map[string]string{
		"phone_number": "Phone",
		"first_name":   "First Name",
		"last_name":    "Last Name",
		"birthday":     "",
	})

	assert.Equal(t, "Phone", c.Phone)
	assert.Equal(t, "First Name", c.FirstName)
	assert.Equal(t, "birthday", c.Birthday)
	assert.Equal(t, "SMS_Opt_Out", c.OptOut)
	assert.Equal(t, map[string]string{"last_name": "Last Name"}, c.Extra)

	ph := c.Placeholders()
	require.Len(t, ph, 10)
	assert.Equal(t, "birthday", ph[0].Key)
}

func TestCampaignColumnsFrom(t *testing.T) {
	t.Parallel()

	c := CampaignColumnsFrom(map[string]string{"text_prompt": "Message", "unknown": "x"})
	assert.Equal(t, "Message", c.Template)
	assert.Equal(t, "Campaign Process Date", c.ProcessDate)
}
