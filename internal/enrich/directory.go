package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/pipeerr"
	"plantao-pipeline/pkg/models"
)

// DirectoryClient queries the national health facility directory.
type DirectoryClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
}

// NewDirectoryClient builds a directory client. Returns nil when no base
// URL is configured, which the normalizer treats as "registry absent".
func NewDirectoryClient(baseURL string, timeout time.Duration, perMinute int) *DirectoryClient {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if perMinute <= 0 {
		perMinute = 30
	}
	return &DirectoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:     logging.GetGlobalLogger(),
	}
}

// Name identifies the registry in logs.
func (c *DirectoryClient) Name() string { return "facility_directory" }

type directoryResponse struct {
	Establishments []struct {
		Name    string `json:"nome_fantasia"`
		Address string `json:"endereco"`
		City    string `json:"municipio"`
		State   string `json:"uf"`
	} `json:"estabelecimentos"`
}

// Lookup searches the directory by facility name, optionally narrowed by
// city and state.
func (c *DirectoryClient) Lookup(ctx context.Context, name, city, state string) (*Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, pipeerr.Wrap(err, models.ErrorKindTransientExternal, "directory rate wait interrupted")
	}

	params := url.Values{}
	params.Set("nome", name)
	if city != "" {
		params.Set("municipio", city)
	}
	if state != "" {
		params.Set("uf", state)
	}

	endpoint := fmt.Sprintf("%s/estabelecimentos?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pipeerr.Wrap(err, models.ErrorKindInternal, "build directory request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyHTTPError(err, "directory lookup failed")
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, "directory"); err != nil {
		return nil, err
	}

	var body directoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, pipeerr.Wrap(err, models.ErrorKindInternal, "decode directory response")
	}

	if len(body.Establishments) == 0 {
		return nil, pipeerr.NotFound("no directory match for " + name)
	}

	est := body.Establishments[0]
	c.logger.Debug("Directory lookup hit", map[string]interface{}{
		"query": name,
		"match": est.Name,
	})

	return &Candidate{
		Name:    est.Name,
		Address: est.Address,
		City:    est.City,
		State:   est.State,
		Score:   0.9,
	}, nil
}

// classifyHTTPError maps a transport failure onto the error taxonomy.
// Timeouts, resets and DNS hiccups all clear up on retry.
func classifyHTTPError(err error, message string) error {
	return pipeerr.Wrap(err, models.ErrorKindTransientExternal, message)
}

// checkStatus maps HTTP status codes onto the error taxonomy. Rate limits
// and server errors clear up on retry; client errors do not.
func checkStatus(status int, service string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return pipeerr.NotFound(service + " returned no match")
	case status == http.StatusTooManyRequests || status >= 500:
		return pipeerr.Transient(fmt.Sprintf("%s returned status %d", service, status))
	default:
		return pipeerr.Internal(fmt.Sprintf("%s returned status %d", service, status))
	}
}
