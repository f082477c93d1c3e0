package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillableFieldsCoverMetaTable(t *testing.T) {
	fields := FillableFields()
	assert.Len(t, fields, len(fieldMetas))
	for _, f := range fields {
		_, ok := MetaFor(f)
		assert.True(t, ok, "field %s missing from meta table", f)
	}
}

func TestPlausible(t *testing.T) {
	tests := []struct {
		field Field
		value float64
		want  bool
	}{
		{FieldAcceptanceRate, 15.0, true},
		{FieldAcceptanceRate, 0.05, false},
		{FieldAcceptanceRate, 100.0, true},
		{FieldAcceptanceRate, 150.0, false},
		{FieldTuitionOutState, 45000, true},
		{FieldTuitionOutState, 500, false},
		{FieldTuitionOutState, 200000, false},
		{FieldTotalStudents, 30000, true},
		{FieldTotalStudents, 50, false},
		{FieldGPAAverage, 3.8, true},
		{FieldGPAAverage, 4.5, false},
		{FieldSATMath75th, 790, true},
		{FieldSATMath75th, 900, false},
		{FieldACTComposite25th, 22, true},
		{FieldACTComposite25th, 40, false},
		{FieldGraduationRate, 85, true},
		{FieldGraduationRate, 2, false},
		// Non-numeric fields accept anything.
		{FieldCity, -1, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Plausible(tt.field, tt.value),
			"Plausible(%s, %v)", tt.field, tt.value)
	}

	assert.False(t, Plausible(Field("bogus"), 1))
}

func TestCoerceValue(t *testing.T) {
	v, err := CoerceValue(FieldTotalStudents, float64(31000))
	require.NoError(t, err)
	assert.Equal(t, int64(31000), v)

	v, err = CoerceValue(FieldTotalStudents, "31000")
	require.NoError(t, err)
	assert.Equal(t, int64(31000), v)

	v, err = CoerceValue(FieldAcceptanceRate, "14.5")
	require.NoError(t, err)
	assert.Equal(t, 14.5, v)

	v, err = CoerceValue(FieldAcceptanceRate, int64(14))
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)

	v, err = CoerceValue(FieldCity, "Cambridge")
	require.NoError(t, err)
	assert.Equal(t, "Cambridge", v)

	_, err = CoerceValue(FieldCity, 42)
	assert.Error(t, err)

	_, err = CoerceValue(FieldTotalStudents, "not a number")
	assert.Error(t, err)

	_, err = CoerceValue(Field("bogus"), "x")
	assert.Error(t, err)
}

func TestNumericValue(t *testing.T) {
	n, ok := NumericValue(int64(5))
	assert.True(t, ok)
	assert.Equal(t, 5.0, n)

	n, ok = NumericValue(14.5)
	assert.True(t, ok)
	assert.Equal(t, 14.5, n)

	_, ok = NumericValue("14.5")
	assert.False(t, ok)
}

func TestMissingFieldsAndHasField(t *testing.T) {
	u := &University{Name: "Test U"}
	missing := u.MissingFields()
	assert.Len(t, missing, len(FillableFields()))

	city := "Boston"
	students := int64(20000)
	u.City = &city
	u.TotalStudents = &students

	assert.True(t, u.HasField(FieldCity))
	assert.True(t, u.HasField(FieldTotalStudents))
	assert.False(t, u.HasField(FieldState))

	missing = u.MissingFields()
	assert.Len(t, missing, len(FillableFields())-2)
	assert.NotContains(t, missing, FieldCity)
	assert.NotContains(t, missing, FieldTotalStudents)

	// Empty strings do not count as populated.
	empty := ""
	u.State = &empty
	assert.False(t, u.HasField(FieldState))
}

func TestSetField(t *testing.T) {
	u := &University{Name: "Test U"}

	require.NoError(t, u.SetField(FieldCity, "Ithaca"))
	require.NotNil(t, u.City)
	assert.Equal(t, "Ithaca", *u.City)

	require.NoError(t, u.SetField(FieldAcceptanceRate, "10.6"))
	require.NotNil(t, u.AcceptanceRate)
	assert.Equal(t, 10.6, *u.AcceptanceRate)

	require.NoError(t, u.SetField(FieldSATMath75th, float64(780)))
	require.NotNil(t, u.SATMath75th)
	assert.Equal(t, int64(780), *u.SATMath75th)

	assert.Error(t, u.SetField(Field("bogus"), "x"))
	assert.Error(t, u.SetField(FieldTotalStudents, "many"))
}

func TestEnrichmentScore(t *testing.T) {
	complete := &University{Name: "Complete U"}
	for _, f := range FillableFields() {
		var v any
		switch fieldMetas[f].Kind {
		case KindString:
			v = "x"
		case KindInt:
			v = int64(300)
		case KindFloat:
			v = 50.0
		}
		require.NoError(t, complete.SetField(f, v))
	}
	assert.Equal(t, 0, complete.EnrichmentScore())

	empty := &University{Name: "Empty U"}
	criticals := 0
	for _, f := range FillableFields() {
		if PriorityFor(f) == PriorityCritical {
			criticals++
		}
	}
	assert.Equal(t, len(FillableFields())+100*criticals, empty.EnrichmentScore())

	// A record missing one critical field outranks one missing several
	// low-priority fields.
	almostDone := *complete
	almostDone.AcceptanceRate = nil
	cosmetic := *complete
	cosmetic.LogoURL = nil
	cosmetic.Description = nil
	cosmetic.LocationType = nil
	assert.Greater(t, almostDone.EnrichmentScore(), cosmetic.EnrichmentScore())
}

func TestInUS(t *testing.T) {
	u := &University{Name: "Test U"}
	assert.True(t, u.InUS(), "unknown country is treated as potentially US")

	for _, c := range []string{"US", "USA", "United States", "United States of America"} {
		country := c
		u.Country = &country
		assert.True(t, u.InUS(), c)
	}

	abroad := "Canada"
	u.Country = &abroad
	assert.False(t, u.InUS())
}

func TestJobStatus(t *testing.T) {
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())

	assert.True(t, JobStatusPending.Valid())
	assert.False(t, JobStatus("paused").Valid())
}
