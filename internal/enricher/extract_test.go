package enricher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campusdata/enrich-cli/internal/model"
)

func TestExtractAcceptanceRate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{"keyword first", "The university has an acceptance rate of 14.5%.", 14.5, true},
		{"admission variant", "admission rate: 7 percent", 7, true},
		{"percent first", "a 4.5% acceptance rate makes it selective", 4.5, true},
		{"unrelated percent", "95% of students live on campus", 0, false},
		{"no number", "acceptance rate varies by program", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractAcceptanceRate(tt.text)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractTuition(t *testing.T) {
	v, ok := extractTuition("Undergraduate tuition and fees: $57,986 per year")
	assert.True(t, ok)
	assert.Equal(t, 57986.0, v)

	_, ok = extractTuition("tuition information is available on request")
	assert.False(t, ok)
}

func TestExtractEnrollment(t *testing.T) {
	v, ok := extractEnrollment("Total enrollment of 23,600 across all campuses")
	assert.True(t, ok)
	assert.Equal(t, int64(23600), v)

	v, ok = extractEnrollment("home to 11,934 students")
	assert.True(t, ok)
	assert.Equal(t, int64(11934), v)

	_, ok = extractEnrollment("enrollment opens in September")
	assert.False(t, ok)
}

func TestExtractGraduationRate(t *testing.T) {
	v, ok := extractGraduationRate("a six-year graduation rate of 94%")
	assert.True(t, ok)
	assert.Equal(t, 94.0, v)
}

func TestExtractLocation(t *testing.T) {
	city, state, ok := extractLocation("is a university located in Ithaca, New York. Founded in 1865")
	assert.True(t, ok)
	assert.Equal(t, "Ithaca", city)
	assert.Equal(t, "New York", state)

	_, _, ok = extractLocation("the campus sits on a hill")
	assert.False(t, ok)
}

func TestExtractInstitutionType(t *testing.T) {
	v, ok := extractInstitutionType("is a public research university in Michigan")
	assert.True(t, ok)
	assert.Equal(t, "public", v)

	// Private phrasing wins even when "public" appears elsewhere.
	v, ok = extractInstitutionType("a private university open to the public university community")
	assert.True(t, ok)
	assert.Equal(t, "private", v)

	_, ok = extractInstitutionType("a community of scholars")
	assert.False(t, ok)
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><script>var x = "enrollment of 999,999";</script>
<style>.a { color: red }</style></head>
<body><h1>About</h1><p>Total   enrollment of <b>23,600</b> students.</p></body></html>`

	text := htmlToText(html)
	assert.Equal(t, "About Total enrollment of 23,600 students.", text)
}

func TestTruncateDescription(t *testing.T) {
	assert.Equal(t, "short", truncateDescription("short", 100))

	got := truncateDescription("one two three four", 12)
	assert.Equal(t, "one two", got, "cuts back to a word boundary")
}

func TestFilterPlausible(t *testing.T) {
	// Students below the plausible minimum, tuition above the maximum, and
	// an uncoercible SAT score are all dropped; the non-numeric city passes.
	fm := filterPlausible(FieldMap{
		model.FieldAcceptanceRate:  14.5,
		model.FieldTotalStudents:   int64(50),
		model.FieldTuitionOutState: 250000.0,
		model.FieldCity:            "Boston",
		model.FieldSATMath75th:     "not a score",
	})

	assert.Len(t, fm, 2)
	assert.Equal(t, 14.5, fm[model.FieldAcceptanceRate])
	assert.Equal(t, "Boston", fm[model.FieldCity])
}
