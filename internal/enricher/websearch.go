package enricher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campusdata/enrich-cli/internal/fetcher"
	"github.com/campusdata/enrich-cli/internal/model"
)

// WebSearch is the search engine fallback. Result URLs pass an
// educational-domain heuristic before their snippets are mined; when no
// result supplies a website it guesses common .edu hostnames from the
// institution name and validates them with a live fetch.
type WebSearch struct {
	client  fetcher.Client
	guard   *Guard
	baseURL string
}

// NewWebSearch creates the search adapter. baseURL points at a JSON search
// endpoint (SearxNG-compatible).
func NewWebSearch(client fetcher.Client, guard *Guard, baseURL string) *WebSearch {
	return &WebSearch{client: client, guard: guard, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *WebSearch) Name() string  { return SourceWebSearch }
func (s *WebSearch) Priority() int { return 4 }

// Applies requires a configured search endpoint.
func (s *WebSearch) Applies(_ *model.University) bool { return s.baseURL != "" }

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (s *WebSearch) Enrich(ctx context.Context, u *model.University) (FieldMap, error) {
	q := url.Values{}
	q.Set("q", u.Name+" university admissions")
	q.Set("format", "json")
	reqURL := fmt.Sprintf("%s/search?%s", s.baseURL, q.Encode())

	var resp searchResponse
	err := s.guard.Do(ctx, SourceWebSearch, "search", func(ctx context.Context) error {
		return s.client.GetJSON(ctx, reqURL, &resp)
	})
	if err != nil {
		return FieldMap{}, eris.Wrapf(err, "websearch: search %q", u.Name)
	}

	fm := FieldMap{}
	var snippets []string
	for _, r := range resp.Results {
		if !isEducationalURL(r.URL) {
			continue
		}
		if _, ok := fm[model.FieldWebsite]; !ok {
			if root, ok := siteRoot(r.URL); ok {
				fm[model.FieldWebsite] = root
			}
		}
		snippets = append(snippets, r.Title, r.Content)
	}

	text := strings.Join(snippets, " ")
	if v, ok := extractAcceptanceRate(text); ok {
		fm[model.FieldAcceptanceRate] = v
	}
	if v, ok := extractTuition(text); ok {
		fm[model.FieldTuitionOutState] = v
	}
	if v, ok := extractEnrollment(text); ok {
		fm[model.FieldTotalStudents] = v
	}
	if v, ok := extractGraduationRate(text); ok {
		fm[model.FieldGraduationRate] = v
	}

	if _, ok := fm[model.FieldWebsite]; !ok && !u.HasField(model.FieldWebsite) {
		if site := s.guessWebsite(ctx, u.Name); site != "" {
			fm[model.FieldWebsite] = site
		}
	}

	return filterPlausible(fm), nil
}

// guessWebsite tries common .edu hostnames derived from the institution
// name and returns the first that answers.
func (s *WebSearch) guessWebsite(ctx context.Context, name string) string {
	for _, candidate := range guessWebsiteCandidates(name) {
		err := s.guard.Do(ctx, SourceWebSearch, "validate-website", func(ctx context.Context) error {
			_, err := s.client.Get(ctx, candidate)
			return err
		})
		if err == nil {
			return candidate
		}
		zap.L().Debug("website guess rejected",
			zap.String("candidate", candidate),
			zap.Error(err))
	}
	return ""
}

// fillerWords are dropped when deriving hostname guesses from a name.
var fillerWords = map[string]bool{
	"the": true, "of": true, "at": true, "and": true,
	"university": true, "college": true, "institute": true,
}

func guessWebsiteCandidates(name string) []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		tok = strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' {
				return r
			}
			return -1
		}, tok)
		if tok == "" || fillerWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		return nil
	}

	joined := strings.Join(tokens, "")
	candidates := []string{fmt.Sprintf("https://www.%s.edu", joined)}
	if len(tokens) > 1 {
		var initials strings.Builder
		for _, tok := range tokens {
			initials.WriteByte(tok[0])
		}
		candidates = append(candidates, fmt.Sprintf("https://www.%s.edu", initials.String()))
	}
	return candidates
}

// isEducationalURL accepts hosts that look like institution domains:
// .edu TLDs, academic country domains (.ac.xx), or hosts naming a
// university or college.
func isEducationalURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	if strings.HasSuffix(host, ".edu") || strings.Contains(host, ".edu.") {
		return true
	}
	if strings.Contains(host, ".ac.") {
		return true
	}
	return strings.Contains(host, "university") || strings.Contains(host, "college")
}

// siteRoot reduces a result URL to its scheme + host.
func siteRoot(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + parsed.Host, true
}
