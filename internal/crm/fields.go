package crm

import (
	"strconv"
	"strings"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/models"
)

type customField struct {
	FieldID   int64        `json:"field_id,omitempty"`
	FieldCode string       `json:"field_code,omitempty"`
	Values    []fieldValue `json:"values"`
}

type fieldValue struct {
	Value    string `json:"value,omitempty"`
	EnumID   int64  `json:"enum_id,omitempty"`
	EnumCode string `json:"enum_code,omitempty"`
}

func textField(id int64, value string) (customField, bool) {
	if id == 0 || value == "" {
		return customField{}, false
	}
	return customField{FieldID: id, Values: []fieldValue{{Value: value}}}, true
}

func enumField(id, enumID int64) (customField, bool) {
	if id == 0 || enumID == 0 {
		return customField{}, false
	}
	return customField{FieldID: id, Values: []fieldValue{{EnumID: enumID}}}, true
}

func contactCustomFields(ids config.CRMFields, f models.ContactFields) []customField {
	var out []customField
	if f.Phone != "" {
		out = append(out, customField{
			FieldCode: "PHONE",
			Values:    []fieldValue{{Value: f.Phone, EnumCode: "WORK"}},
		})
	}

	add := func(cf customField, ok bool) {
		if ok {
			out = append(out, cf)
		}
	}
	add(textField(ids.ContactPhone, f.Phone))
	if f.TelegramID != 0 {
		add(textField(ids.TelegramID, strconv.FormatInt(f.TelegramID, 10)))
	}
	add(textField(ids.TelegramUsername, f.Username))
	add(textField(ids.Language, f.Locale))
	return out
}

func leadCustomFields(ids config.CRMFields, f models.LeadFields, loc *time.Location) []customField {
	var out []customField
	add := func(cf customField, ok bool) {
		if ok {
			out = append(out, cf)
		}
	}

	if f.ChildrenCount > 0 {
		add(textField(ids.ChildrenCount, strconv.Itoa(f.ChildrenCount)))
	}
	add(textField(ids.ChildrenAges, strings.Join(f.ChildAges, ", ")))
	if f.Program != "" {
		add(enumField(ids.Program, programEnum(ids.ProgramEnums, f.Program)))
	}
	if f.Campus != "" {
		add(enumField(ids.TourCampus, ids.CampusEnums[f.Campus]))
	}
	if f.TourAt != nil {
		add(textField(ids.TourDateTime, f.TourAt.In(loc).Format("2006-01-02 15:04")))
	}
	add(textField(ids.TourStatus, f.TourStatus))
	return out
}

// programEnum maps a program key to its enum id. Unknown programs land on
// the consultation option.
func programEnum(enums map[string]int64, program string) int64 {
	if id, ok := enums[program]; ok {
		return id
	}
	return enums["consultation"]
}
