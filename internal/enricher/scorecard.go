package enricher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/campusdata/enrich-cli/internal/fetcher"
	"github.com/campusdata/enrich-cli/internal/model"
)

// scorecardFields are the flattened API fields requested per school.
var scorecardFields = []string{
	"school.name",
	"school.city",
	"school.state",
	"school.school_url",
	"school.ownership",
	"school.locale",
	"latest.student.size",
	"latest.admissions.admission_rate.overall",
	"latest.admissions.sat_scores.25th_percentile.math",
	"latest.admissions.sat_scores.75th_percentile.math",
	"latest.admissions.sat_scores.25th_percentile.critical_reading",
	"latest.admissions.sat_scores.75th_percentile.critical_reading",
	"latest.admissions.act_scores.25th_percentile.cumulative",
	"latest.admissions.act_scores.75th_percentile.cumulative",
	"latest.cost.tuition.out_of_state",
	"latest.cost.attendance.academic_year",
	"latest.completion.completion_rate_4yr_100nt",
}

// Scorecard queries the official government statistics registry. It is the
// highest-trust source but only covers US institutions.
type Scorecard struct {
	client  fetcher.Client
	guard   *Guard
	baseURL string
	apiKey  string
}

// NewScorecard creates the registry adapter. baseURL without a trailing
// slash; an empty apiKey disables the source via Applies.
func NewScorecard(client fetcher.Client, guard *Guard, baseURL, apiKey string) *Scorecard {
	if baseURL == "" {
		baseURL = "https://api.data.gov/ed/collegescorecard"
	}
	return &Scorecard{client: client, guard: guard, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (s *Scorecard) Name() string  { return SourceScorecard }
func (s *Scorecard) Priority() int { return 1 }

// Applies gates the registry to US institutions: it has no data on anything
// else, and skipping it saves the call budget.
func (s *Scorecard) Applies(u *model.University) bool {
	return s.apiKey != "" && u.InUS()
}

type scorecardResponse struct {
	Results []map[string]any `json:"results"`
}

func (s *Scorecard) Enrich(ctx context.Context, u *model.University) (FieldMap, error) {
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("school.name", u.Name)
	q.Set("fields", strings.Join(scorecardFields, ","))
	q.Set("per_page", "1")
	reqURL := fmt.Sprintf("%s/v1/schools?%s", s.baseURL, q.Encode())

	var resp scorecardResponse
	err := s.guard.Do(ctx, SourceScorecard, "schools", func(ctx context.Context) error {
		return s.client.GetJSON(ctx, reqURL, &resp)
	})
	if err != nil {
		return FieldMap{}, eris.Wrapf(err, "scorecard: lookup %q", u.Name)
	}
	if len(resp.Results) == 0 {
		return FieldMap{}, nil
	}
	rec := resp.Results[0]

	fm := FieldMap{}
	if v, ok := rec["school.city"].(string); ok && v != "" {
		fm[model.FieldCity] = v
	}
	if v, ok := rec["school.state"].(string); ok && v != "" {
		fm[model.FieldState] = v
		fm[model.FieldCountry] = "United States"
	}
	if v, ok := rec["school.school_url"].(string); ok && v != "" {
		fm[model.FieldWebsite] = normalizeWebsite(v)
	}
	if v, ok := numberAt(rec, "school.ownership"); ok {
		// 1 = public, 2 = private nonprofit, 3 = private for-profit.
		if v == 1 {
			fm[model.FieldInstitutionType] = "public"
		} else if v == 2 || v == 3 {
			fm[model.FieldInstitutionType] = "private"
		}
	}
	if v, ok := numberAt(rec, "latest.student.size"); ok {
		fm[model.FieldTotalStudents] = int64(v)
	}
	if v, ok := numberAt(rec, "latest.admissions.admission_rate.overall"); ok {
		fm[model.FieldAcceptanceRate] = v * 100
	}
	if v, ok := numberAt(rec, "latest.admissions.sat_scores.25th_percentile.math"); ok {
		fm[model.FieldSATMath25th] = int64(v)
	}
	if v, ok := numberAt(rec, "latest.admissions.sat_scores.75th_percentile.math"); ok {
		fm[model.FieldSATMath75th] = int64(v)
	}
	if v, ok := numberAt(rec, "latest.admissions.sat_scores.25th_percentile.critical_reading"); ok {
		fm[model.FieldSATEBRW25th] = int64(v)
	}
	if v, ok := numberAt(rec, "latest.admissions.sat_scores.75th_percentile.critical_reading"); ok {
		fm[model.FieldSATEBRW75th] = int64(v)
	}
	if v, ok := numberAt(rec, "latest.admissions.act_scores.25th_percentile.cumulative"); ok {
		fm[model.FieldACTComposite25th] = int64(v)
	}
	if v, ok := numberAt(rec, "latest.admissions.act_scores.75th_percentile.cumulative"); ok {
		fm[model.FieldACTComposite75th] = int64(v)
	}
	if v, ok := numberAt(rec, "latest.cost.tuition.out_of_state"); ok {
		fm[model.FieldTuitionOutState] = v
	}
	if v, ok := numberAt(rec, "latest.cost.attendance.academic_year"); ok {
		fm[model.FieldTotalCost] = v
	}
	if v, ok := numberAt(rec, "latest.completion.completion_rate_4yr_100nt"); ok {
		fm[model.FieldGraduationRate] = v * 100
	}

	return filterPlausible(fm), nil
}

// numberAt reads a numeric value from a flattened API record, tolerating
// null and integer-vs-float JSON encodings.
func numberAt(rec map[string]any, key string) (float64, bool) {
	v, ok := rec[key]
	if !ok || v == nil {
		return 0, false
	}
	return model.NumericValue(v)
}

// normalizeWebsite ensures the URL carries a scheme.
func normalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}
