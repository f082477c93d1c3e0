package enricher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdata/enrich-cli/internal/fetcher"
	"github.com/campusdata/enrich-cli/internal/model"
)

func TestScorecardApplies(t *testing.T) {
	guard := newTestGuard(1, 10)
	client := fetcher.NewHTTPClient(fetcher.HTTPOptions{})

	noKey := NewScorecard(client, guard, "", "")
	assert.False(t, noKey.Applies(&model.University{Name: "MIT"}))

	sc := NewScorecard(client, guard, "", "key")
	assert.True(t, sc.Applies(&model.University{Name: "MIT"}))

	canada := "Canada"
	assert.False(t, sc.Applies(&model.University{Name: "McGill", Country: &canada}))

	us := "United States"
	assert.True(t, sc.Applies(&model.University{Name: "MIT", Country: &us}))
}

func TestScorecardEnrich(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/schools", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "MIT", q.Get("school.name"))
		assert.Equal(t, "1", q.Get("per_page"))
		assert.Contains(t, q.Get("fields"), "latest.student.size")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{
			"school.city": "Cambridge",
			"school.state": "MA",
			"school.school_url": "web.mit.edu",
			"school.ownership": 2,
			"latest.student.size": 11934,
			"latest.admissions.admission_rate.overall": 0.04,
			"latest.admissions.sat_scores.75th_percentile.math": 800,
			"latest.cost.tuition.out_of_state": 57986,
			"latest.completion.completion_rate_4yr_100nt": 0.86
		}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	sc := NewScorecard(fetcher.NewHTTPClient(fetcher.HTTPOptions{}), newTestGuard(1, 10), srv.URL, "test-key")
	fm, err := sc.Enrich(context.Background(), &model.University{Name: "MIT"})
	require.NoError(t, err)

	assert.Equal(t, "Cambridge", fm[model.FieldCity])
	assert.Equal(t, "MA", fm[model.FieldState])
	assert.Equal(t, "United States", fm[model.FieldCountry])
	assert.Equal(t, "https://web.mit.edu", fm[model.FieldWebsite], "bare URL gains a scheme")
	assert.Equal(t, "private", fm[model.FieldInstitutionType])
	assert.Equal(t, int64(11934), fm[model.FieldTotalStudents])
	assert.Equal(t, 4.0, fm[model.FieldAcceptanceRate], "API fraction scales to a percentage")
	assert.Equal(t, int64(800), fm[model.FieldSATMath75th])
	assert.Equal(t, 57986.0, fm[model.FieldTuitionOutState])
	assert.InDelta(t, 86.0, fm[model.FieldGraduationRate], 1e-9)
}

func TestScorecardEnrichNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	sc := NewScorecard(fetcher.NewHTTPClient(fetcher.HTTPOptions{}), newTestGuard(1, 10), srv.URL, "test-key")
	fm, err := sc.Enrich(context.Background(), &model.University{Name: "Unknown School"})
	require.NoError(t, err)
	assert.Empty(t, fm)
}

func TestScorecardEnrichNullFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{
			"school.city": "Cambridge",
			"latest.student.size": null,
			"latest.admissions.admission_rate.overall": null
		}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	sc := NewScorecard(fetcher.NewHTTPClient(fetcher.HTTPOptions{}), newTestGuard(1, 10), srv.URL, "test-key")
	fm, err := sc.Enrich(context.Background(), &model.University{Name: "MIT"})
	require.NoError(t, err)
	assert.Equal(t, FieldMap{model.FieldCity: "Cambridge"}, fm)
}

func TestNormalizeWebsite(t *testing.T) {
	assert.Equal(t, "https://mit.edu", normalizeWebsite("mit.edu"))
	assert.Equal(t, "http://mit.edu", normalizeWebsite("http://mit.edu"))
	assert.Equal(t, "https://mit.edu", normalizeWebsite("  https://mit.edu"))
	assert.Equal(t, "", normalizeWebsite(""))
}
