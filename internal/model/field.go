// Package model defines the institution record, the closed field set, and
// the enrichment job types shared across the pipeline.
package model

// Field identifies one auto-fillable attribute of an institution record.
type Field string

const (
	FieldCity             Field = "city"
	FieldState            Field = "state"
	FieldCountry          Field = "country"
	FieldWebsite          Field = "website"
	FieldLogoURL          Field = "logo_url"
	FieldDescription      Field = "description"
	FieldInstitutionType  Field = "institution_type"
	FieldLocationType     Field = "location_type"
	FieldTotalStudents    Field = "total_students"
	FieldAcceptanceRate   Field = "acceptance_rate"
	FieldGPAAverage       Field = "gpa_average"
	FieldSATMath25th      Field = "sat_math_25th"
	FieldSATMath75th      Field = "sat_math_75th"
	FieldSATEBRW25th      Field = "sat_ebrw_25th"
	FieldSATEBRW75th      Field = "sat_ebrw_75th"
	FieldACTComposite25th Field = "act_composite_25th"
	FieldACTComposite75th Field = "act_composite_75th"
	FieldTuitionOutState  Field = "tuition_out_state"
	FieldTotalCost        Field = "total_cost"
	FieldGraduationRate   Field = "graduation_rate_4year"
)

// FieldPriority ranks how urgently a missing field should be filled.
// 1 = critical, 2 = important, 3 = nice to have.
type FieldPriority int

const (
	PriorityCritical  FieldPriority = 1
	PriorityImportant FieldPriority = 2
	PriorityLow       FieldPriority = 3
)

// FieldKind is the storage type of a field value.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindFloat
)

// FieldMeta holds static metadata for a field: whether it is numeric, the
// plausibility range accepted from extraction, the variance threshold used by
// statistical consensus, and its fill priority. A zero VarianceThreshold
// means "use ±10% of the candidate mean".
type FieldMeta struct {
	Key               Field
	Kind              FieldKind
	Numeric           bool
	PlausibleMin      float64
	PlausibleMax      float64
	VarianceThreshold float64
	Priority          FieldPriority
}

// fieldMetas is the closed set of fillable fields. Extraction, caching,
// reconciliation, and write-back all dispatch off this table.
var fieldMetas = map[Field]FieldMeta{
	FieldCity:            {Key: FieldCity, Priority: PriorityImportant},
	FieldState:           {Key: FieldState, Priority: PriorityImportant},
	FieldCountry:         {Key: FieldCountry, Priority: PriorityLow},
	FieldWebsite:         {Key: FieldWebsite, Priority: PriorityImportant},
	FieldLogoURL:         {Key: FieldLogoURL, Priority: PriorityLow},
	FieldDescription:     {Key: FieldDescription, Priority: PriorityLow},
	FieldInstitutionType: {Key: FieldInstitutionType, Priority: PriorityImportant},
	FieldLocationType:    {Key: FieldLocationType, Priority: PriorityLow},
	FieldTotalStudents: {
		Key: FieldTotalStudents, Kind: KindInt, Numeric: true,
		PlausibleMin: 100, PlausibleMax: 1_000_000,
		VarianceThreshold: 500, Priority: PriorityCritical,
	},
	FieldAcceptanceRate: {
		Key: FieldAcceptanceRate, Kind: KindFloat, Numeric: true,
		PlausibleMin: 0.1, PlausibleMax: 100,
		VarianceThreshold: 2.0, Priority: PriorityCritical,
	},
	FieldGPAAverage: {
		Key: FieldGPAAverage, Kind: KindFloat, Numeric: true,
		PlausibleMin: 1.0, PlausibleMax: 4.0,
		Priority: PriorityCritical,
	},
	FieldSATMath25th: {
		Key: FieldSATMath25th, Kind: KindInt, Numeric: true,
		PlausibleMin: 200, PlausibleMax: 800,
		Priority: PriorityImportant,
	},
	FieldSATMath75th: {
		Key: FieldSATMath75th, Kind: KindInt, Numeric: true,
		PlausibleMin: 200, PlausibleMax: 800,
		Priority: PriorityImportant,
	},
	FieldSATEBRW25th: {
		Key: FieldSATEBRW25th, Kind: KindInt, Numeric: true,
		PlausibleMin: 200, PlausibleMax: 800,
		Priority: PriorityImportant,
	},
	FieldSATEBRW75th: {
		Key: FieldSATEBRW75th, Kind: KindInt, Numeric: true,
		PlausibleMin: 200, PlausibleMax: 800,
		Priority: PriorityImportant,
	},
	FieldACTComposite25th: {
		Key: FieldACTComposite25th, Kind: KindInt, Numeric: true,
		PlausibleMin: 1, PlausibleMax: 36,
		Priority: PriorityImportant,
	},
	FieldACTComposite75th: {
		Key: FieldACTComposite75th, Kind: KindInt, Numeric: true,
		PlausibleMin: 1, PlausibleMax: 36,
		Priority: PriorityImportant,
	},
	FieldTuitionOutState: {
		Key: FieldTuitionOutState, Kind: KindFloat, Numeric: true,
		PlausibleMin: 5_000, PlausibleMax: 90_000,
		VarianceThreshold: 1_000, Priority: PriorityCritical,
	},
	FieldTotalCost: {
		Key: FieldTotalCost, Kind: KindFloat, Numeric: true,
		PlausibleMin: 5_000, PlausibleMax: 120_000,
		Priority: PriorityCritical,
	},
	FieldGraduationRate: {
		Key: FieldGraduationRate, Kind: KindFloat, Numeric: true,
		PlausibleMin: 5, PlausibleMax: 100,
		VarianceThreshold: 3.0, Priority: PriorityCritical,
	},
}

// fillableOrder fixes the iteration order for deterministic processing.
var fillableOrder = []Field{
	FieldCity, FieldState, FieldCountry, FieldWebsite, FieldLogoURL,
	FieldDescription, FieldInstitutionType, FieldLocationType,
	FieldTotalStudents, FieldAcceptanceRate, FieldGPAAverage,
	FieldSATMath25th, FieldSATMath75th, FieldSATEBRW25th, FieldSATEBRW75th,
	FieldACTComposite25th, FieldACTComposite75th,
	FieldTuitionOutState, FieldTotalCost, FieldGraduationRate,
}

// FillableFields returns all fields the pipeline may auto-fill, in a fixed order.
func FillableFields() []Field {
	out := make([]Field, len(fillableOrder))
	copy(out, fillableOrder)
	return out
}

// MetaFor returns the metadata for a field and whether it is part of the
// closed fillable set.
func MetaFor(f Field) (FieldMeta, bool) {
	m, ok := fieldMetas[f]
	return m, ok
}

// IsNumeric reports whether the field holds a numeric value.
func IsNumeric(f Field) bool {
	m, ok := fieldMetas[f]
	return ok && m.Numeric
}

// Plausible reports whether v is inside the field's plausibility range.
// Non-numeric fields accept any value; unknown fields accept nothing.
func Plausible(f Field, v float64) bool {
	m, ok := fieldMetas[f]
	if !ok {
		return false
	}
	if !m.Numeric {
		return true
	}
	return v >= m.PlausibleMin && v <= m.PlausibleMax
}

// VarianceThreshold returns the consensus clustering threshold for a numeric
// field. A zero return means the caller should fall back to ±10% of the mean.
func VarianceThreshold(f Field) float64 {
	return fieldMetas[f].VarianceThreshold
}

// PriorityFor returns the fill priority for a field, defaulting to low for
// fields outside the closed set.
func PriorityFor(f Field) FieldPriority {
	if m, ok := fieldMetas[f]; ok {
		return m.Priority
	}
	return PriorityLow
}
