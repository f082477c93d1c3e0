package enricher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/campusdata/enrich-cli/internal/fetcher"
	"github.com/campusdata/enrich-cli/internal/model"
)

// Entity properties consulted on the knowledge base.
const (
	propWebsite   = "P856"
	propLogo      = "P154"
	propLocatedIn = "P131"
	propCountry   = "P17"
)

// Knowledge queries a structured knowledge base (Wikidata-style entity API)
// for ID-keyed facts: official website, location, country, logo.
type Knowledge struct {
	client  fetcher.Client
	guard   *Guard
	baseURL string
}

// NewKnowledge creates the knowledge base adapter.
func NewKnowledge(client fetcher.Client, guard *Guard, baseURL string) *Knowledge {
	if baseURL == "" {
		baseURL = "https://www.wikidata.org"
	}
	return &Knowledge{client: client, guard: guard, baseURL: strings.TrimRight(baseURL, "/")}
}

func (k *Knowledge) Name() string                     { return SourceKnowledge }
func (k *Knowledge) Priority() int                    { return 2 }
func (k *Knowledge) Applies(_ *model.University) bool { return true }

type kbSearchResponse struct {
	Search []struct {
		ID string `json:"id"`
	} `json:"search"`
}

type kbClaim struct {
	MainSnak struct {
		DataValue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

type kbEntityResponse struct {
	Entities map[string]struct {
		Claims map[string][]kbClaim `json:"claims"`
		Labels map[string]struct {
			Value string `json:"value"`
		} `json:"labels"`
	} `json:"entities"`
}

func (k *Knowledge) Enrich(ctx context.Context, u *model.University) (FieldMap, error) {
	entityID, err := k.searchEntity(ctx, u.Name)
	if err != nil {
		return FieldMap{}, eris.Wrapf(err, "knowledge: search %q", u.Name)
	}
	if entityID == "" {
		return FieldMap{}, nil
	}

	claims, err := k.getClaims(ctx, entityID)
	if err != nil {
		return FieldMap{}, eris.Wrapf(err, "knowledge: entity %s", entityID)
	}

	fm := FieldMap{}
	if site, ok := claimString(claims, propWebsite); ok {
		fm[model.FieldWebsite] = normalizeWebsite(site)
	}
	if logo, ok := claimString(claims, propLogo); ok {
		fm[model.FieldLogoURL] = commonsFileURL(logo)
	}

	// Location and country are entity references; resolve their labels in
	// one follow-up call.
	var refIDs []string
	cityID, hasCity := claimEntityID(claims, propLocatedIn)
	countryID, hasCountry := claimEntityID(claims, propCountry)
	if hasCity {
		refIDs = append(refIDs, cityID)
	}
	if hasCountry {
		refIDs = append(refIDs, countryID)
	}
	if len(refIDs) > 0 {
		labels, err := k.getLabels(ctx, refIDs)
		if err != nil {
			return filterPlausible(fm), eris.Wrapf(err, "knowledge: labels for %s", entityID)
		}
		if hasCity {
			if name, ok := labels[cityID]; ok {
				fm[model.FieldCity] = name
			}
		}
		if hasCountry {
			if name, ok := labels[countryID]; ok {
				fm[model.FieldCountry] = name
			}
		}
	}

	return filterPlausible(fm), nil
}

func (k *Knowledge) searchEntity(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("action", "wbsearchentities")
	q.Set("search", name)
	q.Set("language", "en")
	q.Set("type", "item")
	q.Set("format", "json")
	reqURL := fmt.Sprintf("%s/w/api.php?%s", k.baseURL, q.Encode())

	var resp kbSearchResponse
	err := k.guard.Do(ctx, SourceKnowledge, "search", func(ctx context.Context) error {
		return k.client.GetJSON(ctx, reqURL, &resp)
	})
	if err != nil {
		return "", err
	}
	if len(resp.Search) == 0 {
		return "", nil
	}
	return resp.Search[0].ID, nil
}

func (k *Knowledge) getClaims(ctx context.Context, entityID string) (map[string][]kbClaim, error) {
	q := url.Values{}
	q.Set("action", "wbgetentities")
	q.Set("ids", entityID)
	q.Set("props", "claims")
	q.Set("format", "json")
	reqURL := fmt.Sprintf("%s/w/api.php?%s", k.baseURL, q.Encode())

	var resp kbEntityResponse
	err := k.guard.Do(ctx, SourceKnowledge, "entity", func(ctx context.Context) error {
		return k.client.GetJSON(ctx, reqURL, &resp)
	})
	if err != nil {
		return nil, err
	}
	entity, ok := resp.Entities[entityID]
	if !ok {
		return nil, nil
	}
	return entity.Claims, nil
}

func (k *Knowledge) getLabels(ctx context.Context, ids []string) (map[string]string, error) {
	q := url.Values{}
	q.Set("action", "wbgetentities")
	q.Set("ids", strings.Join(ids, "|"))
	q.Set("props", "labels")
	q.Set("languages", "en")
	q.Set("format", "json")
	reqURL := fmt.Sprintf("%s/w/api.php?%s", k.baseURL, q.Encode())

	var resp kbEntityResponse
	err := k.guard.Do(ctx, SourceKnowledge, "labels", func(ctx context.Context) error {
		return k.client.GetJSON(ctx, reqURL, &resp)
	})
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(resp.Entities))
	for id, entity := range resp.Entities {
		if l, ok := entity.Labels["en"]; ok && l.Value != "" {
			labels[id] = l.Value
		}
	}
	return labels, nil
}

// claimString reads the first claim of a property as a plain string value.
func claimString(claims map[string][]kbClaim, prop string) (string, bool) {
	for _, c := range claims[prop] {
		var s string
		if err := json.Unmarshal(c.MainSnak.DataValue.Value, &s); err == nil && s != "" {
			return s, true
		}
	}
	return "", false
}

// claimEntityID reads the first claim of a property as an entity reference.
func claimEntityID(claims map[string][]kbClaim, prop string) (string, bool) {
	for _, c := range claims[prop] {
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(c.MainSnak.DataValue.Value, &ref); err == nil && ref.ID != "" {
			return ref.ID, true
		}
	}
	return "", false
}

// commonsFileURL builds a stable media URL from a knowledge base file name.
func commonsFileURL(filename string) string {
	return "https://commons.wikimedia.org/wiki/Special:FilePath/" + url.PathEscape(strings.ReplaceAll(filename, " ", "_"))
}
