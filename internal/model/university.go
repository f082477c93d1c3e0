package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// University is an institution catalog record. Most attributes are optional
// and start unknown; the enrichment pipeline only ever fills attributes that
// are nil and never overwrites a populated one.
type University struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	City                *string  `json:"city,omitempty"`
	State               *string  `json:"state,omitempty"`
	Country             *string  `json:"country,omitempty"`
	Website             *string  `json:"website,omitempty"`
	LogoURL             *string  `json:"logo_url,omitempty"`
	Description         *string  `json:"description,omitempty"`
	InstitutionType     *string  `json:"institution_type,omitempty"`
	LocationType        *string  `json:"location_type,omitempty"`
	TotalStudents       *int64   `json:"total_students,omitempty"`
	AcceptanceRate      *float64 `json:"acceptance_rate,omitempty"`
	GPAAverage          *float64 `json:"gpa_average,omitempty"`
	SATMath25th         *int64   `json:"sat_math_25th,omitempty"`
	SATMath75th         *int64   `json:"sat_math_75th,omitempty"`
	SATEBRW25th         *int64   `json:"sat_ebrw_25th,omitempty"`
	SATEBRW75th         *int64   `json:"sat_ebrw_75th,omitempty"`
	ACTComposite25th    *int64   `json:"act_composite_25th,omitempty"`
	ACTComposite75th    *int64   `json:"act_composite_75th,omitempty"`
	TuitionOutState     *float64 `json:"tuition_out_state,omitempty"`
	TotalCost           *float64 `json:"total_cost,omitempty"`
	GraduationRate4Year *float64 `json:"graduation_rate_4year,omitempty"`
}

// HasField reports whether the record already holds a value for f.
func (u *University) HasField(f Field) bool {
	switch f {
	case FieldCity:
		return u.City != nil && *u.City != ""
	case FieldState:
		return u.State != nil && *u.State != ""
	case FieldCountry:
		return u.Country != nil && *u.Country != ""
	case FieldWebsite:
		return u.Website != nil && *u.Website != ""
	case FieldLogoURL:
		return u.LogoURL != nil && *u.LogoURL != ""
	case FieldDescription:
		return u.Description != nil && *u.Description != ""
	case FieldInstitutionType:
		return u.InstitutionType != nil && *u.InstitutionType != ""
	case FieldLocationType:
		return u.LocationType != nil && *u.LocationType != ""
	case FieldTotalStudents:
		return u.TotalStudents != nil
	case FieldAcceptanceRate:
		return u.AcceptanceRate != nil
	case FieldGPAAverage:
		return u.GPAAverage != nil
	case FieldSATMath25th:
		return u.SATMath25th != nil
	case FieldSATMath75th:
		return u.SATMath75th != nil
	case FieldSATEBRW25th:
		return u.SATEBRW25th != nil
	case FieldSATEBRW75th:
		return u.SATEBRW75th != nil
	case FieldACTComposite25th:
		return u.ACTComposite25th != nil
	case FieldACTComposite75th:
		return u.ACTComposite75th != nil
	case FieldTuitionOutState:
		return u.TuitionOutState != nil
	case FieldTotalCost:
		return u.TotalCost != nil
	case FieldGraduationRate:
		return u.GraduationRate4Year != nil
	default:
		return false
	}
}

// SetField assigns a value to the named attribute, coercing it to the
// field's kind first.
func (u *University) SetField(f Field, v any) error {
	coerced, err := CoerceValue(f, v)
	if err != nil {
		return err
	}
	switch f {
	case FieldCity:
		u.City = ptrOf(coerced.(string))
	case FieldState:
		u.State = ptrOf(coerced.(string))
	case FieldCountry:
		u.Country = ptrOf(coerced.(string))
	case FieldWebsite:
		u.Website = ptrOf(coerced.(string))
	case FieldLogoURL:
		u.LogoURL = ptrOf(coerced.(string))
	case FieldDescription:
		u.Description = ptrOf(coerced.(string))
	case FieldInstitutionType:
		u.InstitutionType = ptrOf(coerced.(string))
	case FieldLocationType:
		u.LocationType = ptrOf(coerced.(string))
	case FieldTotalStudents:
		u.TotalStudents = ptrOf(coerced.(int64))
	case FieldAcceptanceRate:
		u.AcceptanceRate = ptrOf(coerced.(float64))
	case FieldGPAAverage:
		u.GPAAverage = ptrOf(coerced.(float64))
	case FieldSATMath25th:
		u.SATMath25th = ptrOf(coerced.(int64))
	case FieldSATMath75th:
		u.SATMath75th = ptrOf(coerced.(int64))
	case FieldSATEBRW25th:
		u.SATEBRW25th = ptrOf(coerced.(int64))
	case FieldSATEBRW75th:
		u.SATEBRW75th = ptrOf(coerced.(int64))
	case FieldACTComposite25th:
		u.ACTComposite25th = ptrOf(coerced.(int64))
	case FieldACTComposite75th:
		u.ACTComposite75th = ptrOf(coerced.(int64))
	case FieldTuitionOutState:
		u.TuitionOutState = ptrOf(coerced.(float64))
	case FieldTotalCost:
		u.TotalCost = ptrOf(coerced.(float64))
	case FieldGraduationRate:
		u.GraduationRate4Year = ptrOf(coerced.(float64))
	default:
		return eris.Errorf("model: unknown field %q", f)
	}
	return nil
}

func ptrOf[T any](v T) *T { return &v }

// MissingFields returns the fillable fields the record has no value for,
// in the canonical field order.
func (u *University) MissingFields() []Field {
	var missing []Field
	for _, f := range FillableFields() {
		if !u.HasField(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// EnrichmentScore ranks how badly the record needs enrichment: each missing
// critical field counts 100, every missing field counts 1 on top. Records
// with higher scores are serviced first by size-bounded jobs.
func (u *University) EnrichmentScore() int {
	score := 0
	for _, f := range u.MissingFields() {
		score++
		if PriorityFor(f) == PriorityCritical {
			score += 100
		}
	}
	return score
}

// InUS reports whether the record is confirmed to be a United States
// institution. Used to gate jurisdiction-restricted sources; an unset
// country is treated as potentially US (the registry lookup itself will
// miss for foreign schools).
func (u *University) InUS() bool {
	if u.Country == nil || *u.Country == "" {
		return true
	}
	switch *u.Country {
	case "US", "USA", "United States", "United States of America":
		return true
	}
	return false
}
