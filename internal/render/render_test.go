package render

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/LeventeLantos/sms-campaign/internal/model"
)

func newRenderer() *Renderer {
	return New(model.DefaultCustomerColumns())
}

func TestRender_BothPlaceholderForms(t *testing.T) {
	t.Parallel()

	c := model.Campaign{Template: "Hi {first_name}, see you #last_visit_date"}
	rec := model.Record{"phone_number": "+15551234567", "first_name": "Ann", "last_visit_date": "2024-03-01"}

	assert.Equal(t, "Hi Ann, see you March 01, 2024", newRenderer().Render(c, rec))
}

func TestRender_HashPlaceholderIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	c := model.Campaign{Template: "#FIRST_NAME / #First_Name / #first_name"}
	rec := model.Record{"first_name": "Bo"}

	assert.Equal(t, "Bo / Bo / Bo", newRenderer().Render(c, rec))
}

func TestRender_HashPlaceholderUsesActualColumnNames(t *testing.T) {
	t.Parallel()

	c := model.Campaign{Template: "Your stylist is #Stylist Name."}
	rec := model.Record{"Stylist Name": "Kim"}

	assert.Equal(t, "Your stylist is Kim.", newRenderer().Render(c, rec))
}

func TestRender_LongerColumnNamesWin(t *testing.T) {
	t.Parallel()

	c := model.Campaign{Template: "#first_name #first"}
	rec := model.Record{"first": "X", "first_name": "Ann"}

	assert.Equal(t, "Ann X", newRenderer().Render(c, rec))
}

func TestRender_BlankLongerColumnIsNotTakenByShorter(t *testing.T) {
	t.Parallel()

	c := model.Campaign{Template: "Dear #Name_Last, or #Name"}
	rec := model.Record{"Name": "Bob", "Name_Last": ""}

	assert.Equal(t, "Dear #Name_Last, or Bob", newRenderer().Render(c, rec))
}

func TestRender_SubstitutedValuesAreNotExpandedAgain(t *testing.T) {
	t.Parallel()

	rec := model.Record{"first_name": "#code", "code": "SECRET", "last_visit_date": "{first_name}"}

	cases := map[string]struct {
		template string
		want     string
	}{
		"mapped key value holds hash form":  {"Hi {first_name}", "Hi #code"},
		"hash column value holds hash form": {"Hi #first_name", "Hi #code"},
		"value holds brace form":            {"Seen {last_visit_date} #code", "Seen {first_name} SECRET"},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, newRenderer().Render(model.Campaign{Template: tc.template}, rec))
		})
	}
}

func TestRender_NoColumnsLeavesTemplate(t *testing.T) {
	t.Parallel()

	r := New(model.CustomerColumns{})
	assert.Equal(t, "Hi {first_name} #x", r.Render(model.Campaign{Template: "Hi {first_name} #x"}, model.Record{}))
	assert.Equal(t, "", r.Render(model.Campaign{}, model.Record{}))
}

func TestRender_MissingValuesLeftInPlace(t *testing.T) {
	t.Parallel()

	c := model.Campaign{Template: "Hi {first_name}, last seen #last_visit_date, code {promo}"}
	rec := model.Record{"first_name": "", "last_visit_date": "   "}

	assert.Equal(t, c.Template, newRenderer().Render(c, rec))
}

func TestRender_MappedColumnAndExtraKeys(t *testing.T) {
	t.Parallel()

	cols := model.CustomerColumnsFrom(map[string]string{
		"first_name": "First",
		"last_name":  "Last",
	})
	c := model.Campaign{Template: "Dear {first_name} {last_name}"}
	rec := model.Record{"First": "Ann", "Last": "Lee"}

	assert.Equal(t, "Dear Ann Lee", New(cols).Render(c, rec))
}

func TestRender_DateColumnsFormatted(t *testing.T) {
	t.Parallel()

	c := model.Campaign{Template: "Born {birthday}, member since #customer_since, note #notes"}
	rec := model.Record{
		"birthday":       "01/05/1990",
		"customer_since": "2019-07-04 00:00:00",
		"notes":          "2024-01-01",
	}

	assert.Equal(t, "Born January 05, 1990, member since July 04, 2019, note 2024-01-01", newRenderer().Render(c, rec))
}

func TestRender_UnparseableDateKeptVerbatim(t *testing.T) {
	t.Parallel()

	c := model.Campaign{Template: "Last visit: {last_visit_date}"}
	rec := model.Record{"last_visit_date": "n/a"}

	assert.Equal(t, "Last visit: n/a", newRenderer().Render(c, rec))
}

func TestRender_TruncatesToCharLimit(t *testing.T) {
	t.Parallel()

	c := model.Campaign{Template: "Hello {first_name}, we have a big sale this weekend!", CharLimit: 20}
	got := newRenderer().Render(c, model.Record{"first_name": "Ann"})

	assert.Equal(t, "Hello Ann, we hav...", got)
	assert.Equal(t, 20, utf8.RuneCountInString(got))
}

func TestRender_IsDeterministic(t *testing.T) {
	t.Parallel()

	r := newRenderer()
	c := model.Campaign{Template: "{first_name} #first_name #phone_number", CharLimit: 40}
	rec := model.Record{"first_name": "Ann", "phone_number": "+15551234567"}

	first := r.Render(c, rec)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Render(c, rec))
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Truncate("short", 0))
	assert.Equal(t, "short", Truncate("short", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 5))
	assert.Equal(t, "..", Truncate("abcdef", 2))
	assert.Equal(t, "héllo w...", Truncate("héllo wörld!", 10))
}
