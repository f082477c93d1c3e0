package enricher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdata/enrich-cli/internal/fetcher"
	"github.com/campusdata/enrich-cli/internal/model"
)

func TestWebSearchApplies(t *testing.T) {
	client := fetcher.NewHTTPClient(fetcher.HTTPOptions{})
	assert.False(t, NewWebSearch(client, newTestGuard(1, 10), "").Applies(&model.University{}))
	assert.True(t, NewWebSearch(client, newTestGuard(1, 10), "http://search.local").Applies(&model.University{}))
}

func TestWebSearchEnrich(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "MIT")

		resp := map[string]any{
			"results": []map[string]string{
				{
					"title":   "MIT Admissions",
					"url":     "https://www.mit.edu/admissions/apply",
					"content": "Tuition is $57,986 per year. The acceptance rate of 4% makes it selective. Home to 11,934 students.",
				},
				{
					"title":   "News roundup",
					"url":     "https://www.example-news.com/story",
					"content": "acceptance rate of 99% reported somewhere else entirely",
				},
			},
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	website := "https://www.mit.edu"
	s := NewWebSearch(fetcher.NewHTTPClient(fetcher.HTTPOptions{}), newTestGuard(1, 10), srv.URL)
	fm, err := s.Enrich(context.Background(), &model.University{Name: "MIT", Website: &website})
	require.NoError(t, err)

	assert.Equal(t, "https://www.mit.edu", fm[model.FieldWebsite])
	assert.Equal(t, 4.0, fm[model.FieldAcceptanceRate], "non-educational snippets are ignored")
	assert.Equal(t, 57986.0, fm[model.FieldTuitionOutState])
	assert.Equal(t, int64(11934), fm[model.FieldTotalStudents])
}

// fakeClient scripts the fetcher for tests that exercise live-validation
// paths without a server per URL.
type fakeClient struct {
	getJSON func(ctx context.Context, url string, out any) error
	get     func(ctx context.Context, url string) ([]byte, error)
}

func (f *fakeClient) Get(ctx context.Context, url string) ([]byte, error) {
	return f.get(ctx, url)
}

func (f *fakeClient) GetJSON(ctx context.Context, url string, out any) error {
	return f.getJSON(ctx, url, out)
}

func (f *fakeClient) GetHTML(ctx context.Context, url string) (string, error) {
	b, err := f.get(ctx, url)
	return string(b), err
}

func TestWebSearchGuessesWebsite(t *testing.T) {
	var tried []string
	client := &fakeClient{
		getJSON: func(ctx context.Context, url string, out any) error {
			return json.Unmarshal([]byte(`{"results":[]}`), out)
		},
		get: func(ctx context.Context, url string) ([]byte, error) {
			tried = append(tried, url)
			if url == "https://www.st.edu" {
				return []byte("ok"), nil
			}
			return nil, eris.New("no such host example")
		},
	}

	s := NewWebSearch(client, newTestGuard(1, 10), "http://search.local")
	fm, err := s.Enrich(context.Background(), &model.University{Name: "State Technical College"})
	require.NoError(t, err)

	assert.Equal(t, "https://www.st.edu", fm[model.FieldWebsite])
	assert.Equal(t, []string{"https://www.statetechnical.edu", "https://www.st.edu"}, tried)
}

func TestWebSearchSkipsGuessWhenWebsiteKnown(t *testing.T) {
	client := &fakeClient{
		getJSON: func(ctx context.Context, url string, out any) error {
			return json.Unmarshal([]byte(`{"results":[]}`), out)
		},
		get: func(ctx context.Context, url string) ([]byte, error) {
			t.Errorf("unexpected validation fetch: %s", url)
			return nil, eris.New("boom")
		},
	}

	website := "https://www.mit.edu"
	s := NewWebSearch(client, newTestGuard(1, 10), "http://search.local")
	fm, err := s.Enrich(context.Background(), &model.University{Name: "MIT", Website: &website})
	require.NoError(t, err)
	assert.NotContains(t, fm, model.FieldWebsite)
}

func TestGuessWebsiteCandidates(t *testing.T) {
	assert.Equal(t,
		[]string{"https://www.michigan.edu"},
		guessWebsiteCandidates("The University of Michigan"))

	assert.Equal(t,
		[]string{"https://www.massachusettstechnology.edu", "https://www.mt.edu"},
		guessWebsiteCandidates("Massachusetts Institute of Technology"))

	assert.Nil(t, guessWebsiteCandidates("The University"))
}

func TestIsEducationalURL(t *testing.T) {
	assert.True(t, isEducationalURL("https://www.mit.edu/admissions"))
	assert.True(t, isEducationalURL("https://www.ox.ac.uk/about"))
	assert.True(t, isEducationalURL("https://apply.bigstateuniversity.org"))
	assert.False(t, isEducationalURL("https://www.example-news.com/story"))
	assert.False(t, isEducationalURL("not a url at all ://"))
}

func TestSiteRoot(t *testing.T) {
	root, ok := siteRoot("https://www.mit.edu/admissions?cycle=2026")
	assert.True(t, ok)
	assert.Equal(t, "https://www.mit.edu", root)

	_, ok = siteRoot("no-host-here")
	assert.False(t, ok)
}
