package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alvmarrod/relation-weaver/internal/config"
	"github.com/alvmarrod/relation-weaver/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// detailFields are the fields requested for every item fetch; id and title are always returned
var detailFields = []string{"related_anime", "start_date", "num_episodes", "main_picture"}

type malPicture struct {
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type malNode struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	MainPicture *malPicture `json:"main_picture"`
}

type malRelated struct {
	Node                  malNode `json:"node"`
	RelationType          string  `json:"relation_type"`
	RelationTypeFormatted string  `json:"relation_type_formatted"`
}

type malAnime struct {
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	StartDate    string       `json:"start_date"`
	NumEpisodes  *int         `json:"num_episodes"`
	MainPicture  *malPicture  `json:"main_picture"`
	RelatedAnime []malRelated `json:"related_anime"`
}

type malList struct {
	Data []struct {
		Node malNode `json:"node"`
	} `json:"data"`
}

// MALClient reads anime details from the MyAnimeList v2 API
type MALClient struct {
	baseURL       string
	accessToken   string
	clientID      string
	httpClient    *http.Client
	limiter       *rate.Limiter
	retryAttempts int
	retryDelay    time.Duration
}

var _ Client = (*MALClient)(nil)

// Option configures a MALClient
type Option func(*MALClient)

// WithHTTPClient overrides the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *MALClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewMALClient creates a client from the runtime configuration
func NewMALClient(cfg *config.Config, opts ...Option) (*MALClient, error) {
	baseURL := strings.TrimSpace(cfg.APIBaseURL)
	if baseURL == "" {
		return nil, errors.New("catalog base url required")
	}
	if cfg.AccessToken == "" && cfg.ClientID == "" {
		return nil, errors.New("catalog access token or client id required")
	}

	c := &MALClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		accessToken:   cfg.AccessToken,
		clientID:      cfg.ClientID,
		httpClient:    &http.Client{Timeout: cfg.RequestTimeout()},
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retryAttempts: cfg.Retries(),
		retryDelay:    cfg.RetryDelay(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetDetails fetches an item with its relations
func (c *MALClient) GetDetails(ctx context.Context, id storage.ItemID) (*Details, error) {
	params := url.Values{}
	params.Set("fields", strings.Join(detailFields, ","))

	var payload malAnime
	if err := c.get(ctx, "/anime/"+strconv.Itoa(int(id)), params, &payload); err != nil {
		return nil, fmt.Errorf("get details for %d: %w", id, err)
	}

	details := &Details{
		ID:           storage.ItemID(payload.ID),
		Title:        payload.Title,
		ReleaseDate:  payload.StartDate,
		EpisodeCount: payload.NumEpisodes,
		ImageURL:     payload.MainPicture.url(),
		Relations:    make([]Relation, 0, len(payload.RelatedAnime)),
	}
	for _, related := range payload.RelatedAnime {
		details.Relations = append(details.Relations, Relation{
			RelatedID:      storage.ItemID(related.Node.ID),
			Kind:           related.RelationType,
			FormattedLabel: related.RelationTypeFormatted,
		})
	}
	return details, nil
}

// Search returns the best match for a free-text query
func (c *MALClient) Search(ctx context.Context, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "1")
	params.Set("nsfw", "true")

	var payload malList
	if err := c.get(ctx, "/anime", params, &payload); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("search %q: %w", query, ErrNotFound)
	}

	node := payload.Data[0].Node
	return &SearchResult{ID: storage.ItemID(node.ID), Title: node.Title}, nil
}

// get issues a GET with retries. Failures wrap ErrUnavailable unless ctx was cancelled.
func (c *MALClient) get(ctx context.Context, path string, params url.Values, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			logrus.Debugf("Retrying %s in %v (attempt %d/%d): %v", path, delay, attempt, c.retryAttempts, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		retry, err := c.do(ctx, path, target, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retry {
			break
		}
	}

	return fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

// do performs a single request. retry reports whether the failure is transient.
func (c *MALClient) do(ctx context.Context, path, target string, out any) (retry bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return true, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return transient, fmt.Errorf("%s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func (c *MALClient) authorize(req *http.Request) {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		return
	}
	req.Header.Set("X-MAL-CLIENT-ID", c.clientID)
}

func (p *malPicture) url() string {
	if p == nil {
		return ""
	}
	if p.Medium != "" {
		return p.Medium
	}
	return p.Large
}
