package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/pipeerr"
	"plantao-pipeline/pkg/models"
)

// PlacesClient queries a places/geocoding service as the fallback registry
// when the facility directory has no match.
type PlacesClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
}

// NewPlacesClient builds a places client. Returns nil when no base URL or
// API key is configured.
func NewPlacesClient(baseURL, apiKey string, timeout time.Duration, perMinute int) *PlacesClient {
	if baseURL == "" || apiKey == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if perMinute <= 0 {
		perMinute = 30
	}
	return &PlacesClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:     logging.GetGlobalLogger(),
	}
}

// Name identifies the registry in logs.
func (c *PlacesClient) Name() string { return "places" }

type placesResponse struct {
	Results []struct {
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Types            []string `json:"types"`
	} `json:"results"`
	Status string `json:"status"`
}

// Lookup searches the places service for a facility. Only results typed as
// health establishments count; a bakery named "Hospital" does not.
func (c *PlacesClient) Lookup(ctx context.Context, name, city, state string) (*Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, pipeerr.Wrap(err, models.ErrorKindTransientExternal, "places rate wait interrupted")
	}

	query := name
	if city != "" {
		query += " " + city
	}
	if state != "" {
		query += " " + state
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/textsearch/json?"+params.Encode(), nil)
	if err != nil {
		return nil, pipeerr.Wrap(err, models.ErrorKindInternal, "build places request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyHTTPError(err, "places lookup failed")
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, "places"); err != nil {
		return nil, err
	}

	var body placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, pipeerr.Wrap(err, models.ErrorKindInternal, "decode places response")
	}

	if body.Status == "OVER_QUERY_LIMIT" {
		return nil, pipeerr.Transient("places query limit exceeded")
	}

	for _, result := range body.Results {
		if !isHealthPlace(result.Types) {
			continue
		}
		c.logger.Debug("Places lookup hit", map[string]interface{}{
			"query": query,
			"match": result.Name,
		})
		return &Candidate{
			Name:    result.Name,
			Address: result.FormattedAddress,
			Score:   0.8,
		}, nil
	}

	return nil, pipeerr.NotFound("no health place match for " + name)
}

func isHealthPlace(types []string) bool {
	for _, t := range types {
		switch strings.ToLower(t) {
		case "hospital", "health", "doctor", "clinic", "emergency_room":
			return true
		}
	}
	return false
}
