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

// descriptionLimit caps the narrative pulled from article text.
const descriptionLimit = 500

// Wikipedia queries the free-text encyclopedia: search for the article,
// fetch its plain-text extract, then mine location, enrollment, type, and a
// short description with the regex heuristics.
type Wikipedia struct {
	client  fetcher.Client
	guard   *Guard
	baseURL string
}

// NewWikipedia creates the encyclopedia adapter.
func NewWikipedia(client fetcher.Client, guard *Guard, baseURL string) *Wikipedia {
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org"
	}
	return &Wikipedia{client: client, guard: guard, baseURL: strings.TrimRight(baseURL, "/")}
}

func (w *Wikipedia) Name() string                     { return SourceWikipedia }
func (w *Wikipedia) Priority() int                    { return 3 }
func (w *Wikipedia) Applies(_ *model.University) bool { return true }

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

func (w *Wikipedia) Enrich(ctx context.Context, u *model.University) (FieldMap, error) {
	title, err := w.searchArticle(ctx, u.Name)
	if err != nil {
		return FieldMap{}, eris.Wrapf(err, "wikipedia: search %q", u.Name)
	}
	if title == "" {
		return FieldMap{}, nil
	}

	extract, err := w.fetchExtract(ctx, title)
	if err != nil {
		return FieldMap{}, eris.Wrapf(err, "wikipedia: extract %q", title)
	}
	if extract == "" {
		return FieldMap{}, nil
	}

	fm := FieldMap{}
	if city, state, ok := extractLocation(extract); ok {
		fm[model.FieldCity] = city
		fm[model.FieldState] = state
	}
	if n, ok := extractEnrollment(extract); ok {
		fm[model.FieldTotalStudents] = n
	}
	if t, ok := extractInstitutionType(extract); ok {
		fm[model.FieldInstitutionType] = t
	}
	if para := firstParagraph(extract); para != "" {
		fm[model.FieldDescription] = truncateDescription(para, descriptionLimit)
	}

	return filterPlausible(fm), nil
}

func (w *Wikipedia) searchArticle(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", name)
	q.Set("srlimit", "1")
	q.Set("format", "json")
	reqURL := fmt.Sprintf("%s/w/api.php?%s", w.baseURL, q.Encode())

	var resp wikiSearchResponse
	err := w.guard.Do(ctx, SourceWikipedia, "search", func(ctx context.Context) error {
		return w.client.GetJSON(ctx, reqURL, &resp)
	})
	if err != nil {
		return "", err
	}
	if len(resp.Query.Search) == 0 {
		return "", nil
	}
	return resp.Query.Search[0].Title, nil
}

func (w *Wikipedia) fetchExtract(ctx context.Context, title string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("explaintext", "1")
	q.Set("titles", title)
	q.Set("format", "json")
	reqURL := fmt.Sprintf("%s/w/api.php?%s", w.baseURL, q.Encode())

	var resp wikiExtractResponse
	err := w.guard.Do(ctx, SourceWikipedia, "extract", func(ctx context.Context) error {
		return w.client.GetJSON(ctx, reqURL, &resp)
	})
	if err != nil {
		return "", err
	}
	for _, page := range resp.Query.Pages {
		if page.Extract != "" {
			return page.Extract, nil
		}
	}
	return "", nil
}

func firstParagraph(text string) string {
	para := text
	if idx := strings.Index(text, "\n"); idx > 0 {
		para = text[:idx]
	}
	return strings.TrimSpace(para)
}
