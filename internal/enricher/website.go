package enricher

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campusdata/enrich-cli/internal/fetcher"
	"github.com/campusdata/enrich-cli/internal/model"
)

// admissionsPaths are fetched after the homepage; institution sites keep
// the numbers we want on a handful of conventional pages.
var admissionsPaths = []string{"/admissions", "/admission", "/tuition", "/about"}

// Website scrapes the institution's own site for admissions, tuition, and
// enrollment figures. It needs the website field already filled and ranks
// last in the pass so an earlier source can supply it.
type Website struct {
	client fetcher.Client
	guard  *Guard
}

// NewWebsite creates the direct-site scraper.
func NewWebsite(client fetcher.Client, guard *Guard) *Website {
	return &Website{client: client, guard: guard}
}

func (w *Website) Name() string  { return SourceWebsite }
func (w *Website) Priority() int { return 5 }

// Applies requires a known website to scrape.
func (w *Website) Applies(u *model.University) bool {
	return u.Website != nil && *u.Website != ""
}

func (w *Website) Enrich(ctx context.Context, u *model.University) (FieldMap, error) {
	if u.Website == nil || *u.Website == "" {
		return FieldMap{}, nil
	}
	base := strings.TrimRight(*u.Website, "/")

	fm := FieldMap{}
	wanted := func() bool {
		_, hasRate := fm[model.FieldAcceptanceRate]
		_, hasTuition := fm[model.FieldTuitionOutState]
		_, hasStudents := fm[model.FieldTotalStudents]
		return !hasRate || !hasTuition || !hasStudents
	}

	pages := append([]string{""}, admissionsPaths...)
	for _, path := range pages {
		if !wanted() {
			break
		}
		text, err := w.fetchPage(ctx, base+path)
		if err != nil {
			// Missing subpages are expected; keep trying the rest.
			zap.L().Debug("website page fetch failed",
				zap.String("url", base+path),
				zap.Error(err))
			continue
		}
		w.mine(text, fm)
	}

	if len(fm) == 0 {
		return FieldMap{}, nil
	}
	return filterPlausible(fm), nil
}

func (w *Website) fetchPage(ctx context.Context, pageURL string) (string, error) {
	var html string
	err := w.guard.Do(ctx, SourceWebsite, "fetch", func(ctx context.Context) error {
		var err error
		html, err = w.client.GetHTML(ctx, pageURL)
		return err
	})
	if err != nil {
		return "", eris.Wrapf(err, "website: fetch %s", pageURL)
	}
	return htmlToText(html), nil
}

// mine fills fm with whatever the page text yields, keeping earlier pages'
// values over later ones.
func (w *Website) mine(text string, fm FieldMap) {
	if _, ok := fm[model.FieldAcceptanceRate]; !ok {
		if v, found := extractAcceptanceRate(text); found {
			fm[model.FieldAcceptanceRate] = v
		}
	}
	if _, ok := fm[model.FieldTuitionOutState]; !ok {
		if v, found := extractTuition(text); found {
			fm[model.FieldTuitionOutState] = v
		}
	}
	if _, ok := fm[model.FieldTotalStudents]; !ok {
		if v, found := extractEnrollment(text); found {
			fm[model.FieldTotalStudents] = v
		}
	}
	if _, ok := fm[model.FieldGraduationRate]; !ok {
		if v, found := extractGraduationRate(text); found {
			fm[model.FieldGraduationRate] = v
		}
	}
}
