package model

import "sort"

// CustomerColumns maps logical customer fields to the column names used by the
// roster files.
type CustomerColumns struct {
	Phone         string
	OptOut        string
	OptOutDate    string
	LastSMSSent   string
	LastSMSStatus string
	LastVisit     string
	Birthday      string
	CustomerSince string
	FirstName     string

	// Extra holds any additional logical names usable as {key} placeholders.
	Extra map[string]string
}

func DefaultCustomerColumns() CustomerColumns {
	return CustomerColumns{
		Phone:         "phone_number",
		OptOut:        "SMS_Opt_Out",
		OptOutDate:    "Opt_Out_Date",
		LastSMSSent:   "last_sms_sent_date",
		LastSMSStatus: "last_sms_status",
		LastVisit:     "last_visit_date",
		Birthday:      "birthday",
		CustomerSince: "customer_since",
		FirstName:     "first_name",
	}
}

// CustomerColumnsFrom resolves a free-form mapping (as found in the config file)
// into the typed form, falling back to defaults for unset keys.
func CustomerColumnsFrom(raw map[string]string) CustomerColumns {
	c := DefaultCustomerColumns()
	known := map[string]*string{
		"phone_number":       &c.Phone,
		"sms_opt_out":        &c.OptOut,
		"opt_out_date":       &c.OptOutDate,
		"last_sms_sent_date": &c.LastSMSSent,
		"last_sms_status":    &c.LastSMSStatus,
		"last_visit_date":    &c.LastVisit,
		"birthday":           &c.Birthday,
		"customer_since":     &c.CustomerSince,
		"first_name":         &c.FirstName,
	}
	for k, v := range raw {
		if v == "" {
			continue
		}
		if dst, ok := known[k]; ok {
			*dst = v
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]string)
		}
		c.Extra[k] = v
	}
	return c
}

// Placeholder is a {key} placeholder bound to a column.
type Placeholder struct {
	Key    string
	Column string
}

// Placeholders lists every {key} binding sorted by key.
func (c CustomerColumns) Placeholders() []Placeholder {
	out := []Placeholder{
		{"phone_number", c.Phone},
		{"sms_opt_out", c.OptOut},
		{"opt_out_date", c.OptOutDate},
		{"last_sms_sent_date", c.LastSMSSent},
		{"last_sms_status", c.LastSMSStatus},
		{"last_visit_date", c.LastVisit},
		{"birthday", c.Birthday},
		{"customer_since", c.CustomerSince},
		{"first_name", c.FirstName},
	}
	for k, v := range c.Extra {
		out = append(out, Placeholder{Key: k, Column: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// DateColumns are the columns whose values are rendered as dates.
func (c CustomerColumns) DateColumns() []string {
	return []string{c.LastVisit, c.LastSMSSent, c.Birthday, c.CustomerSince, c.OptOutDate}
}

// CampaignColumns maps logical campaign fields to the campaign sheet headers.
type CampaignColumns struct {
	Template           string
	CharacterLimit     string
	Kind               string
	Rank               string
	LastVisitDays      string
	LastSMSDays        string
	BirthdayOffsetDays string
	ProcessDate        string
	ProcessStatus      string
}

func DefaultCampaignColumns() CampaignColumns {
	return CampaignColumns{
		Template:           "text_prompt",
		CharacterLimit:     "character_limit",
		Kind:               "campaign_type",
		Rank:               "rank",
		LastVisitDays:      "filter_last_visit_days",
		LastSMSDays:        "filter_last_sms_days",
		BirthdayOffsetDays: "birthday_offset_days",
		ProcessDate:        "Campaign Process Date",
		ProcessStatus:      "Campaign Process Status",
	}
}

func CampaignColumnsFrom(raw map[string]string) CampaignColumns {
	c := DefaultCampaignColumns()
	known := map[string]*string{
		"text_prompt":            &c.Template,
		"character_limit":        &c.CharacterLimit,
		"campaign_type":          &c.Kind,
		"rank":                   &c.Rank,
		"filter_last_visit_days": &c.LastVisitDays,
		"filter_last_sms_days":   &c.LastSMSDays,
		"birthday_offset_days":   &c.BirthdayOffsetDays,
		"process_date":           &c.ProcessDate,
		"process_status":         &c.ProcessStatus,
	}
	for k, v := range raw {
		if dst, ok := known[k]; ok && v != "" {
			*dst = v
		}
	}
	return c
}
