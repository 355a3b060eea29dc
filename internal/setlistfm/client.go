// Package setlistfm implements the concert-listing data collector.
//
// The client wraps the setlist.fm REST API: artist search, paginated
// setlist retrieval, and raw-response persistence. Requests are paced to
// the API's published rate limit and authenticated with an API key header.
package setlistfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.setlist.fm/rest/1.0/"

// itemsPerPage is fixed by the upstream API.
const itemsPerPage = 20

var (
	// ErrAuth indicates the API rejected the key. Setup must abort on it.
	ErrAuth = errors.New("setlistfm: authentication failed")

	// ErrArtistNotFound indicates the artist search returned no match.
	ErrArtistNotFound = errors.New("setlistfm: artist not found")
)

// Client calls the setlist.fm API.
// All methods block until the rate limiter admits the request.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter overrides the request pacer. Tests use rate.NewLimiter(rate.Inf, 0).
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New creates a setlist.fm client. The default pacer allows one request
// per second, matching the API's free-tier limit.
func New(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchArtist returns the most relevant artist for the given name.
// Returns ErrArtistNotFound when the search yields no results.
func (c *Client) SearchArtist(ctx context.Context, name string) (*Artist, error) {
	params := url.Values{
		"artistName": {name},
		"sort":       {"relevance"},
	}

	var resp artistSearchResponse
	if err := c.get(ctx, "search/artists", params, &resp); err != nil {
		return nil, fmt.Errorf("searching artist %q: %w", name, err)
	}

	if len(resp.Artist) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrArtistNotFound, name)
	}

	artist := resp.Artist[0]
	c.logger.Info("found artist", "name", artist.Name, "mbid", artist.MBID)
	return &artist, nil
}

// ArtistSetlists fetches up to max setlists for the artist, newest first,
// accumulating pages until max is reached or the API runs out of results.
//
// A page failure after the first page is logged and the setlists collected
// so far are returned; an auth failure aborts with ErrAuth regardless of
// page.
func (c *Client) ArtistSetlists(ctx context.Context, mbid string, max int) ([]Setlist, error) {
	c.logger.Info("fetching setlists", "mbid", mbid, "max", max)

	var all []Setlist
	for page := 1; len(all) < max; page++ {
		params := url.Values{"p": {fmt.Sprintf("%d", page)}}

		var resp setlistsResponse
		err := c.get(ctx, "artist/"+mbid+"/setlists", params, &resp)
		if err != nil {
			if errors.Is(err, ErrAuth) || page == 1 {
				return nil, fmt.Errorf("fetching setlists page %d: %w", page, err)
			}
			c.logger.Warn("skipping failed setlist page", "page", page, "error", err)
			break
		}

		if len(resp.Setlist) == 0 {
			c.logger.Debug("no more setlists", "page", page)
			break
		}

		all = append(all, resp.Setlist...)

		// Short page means the API is exhausted.
		if len(resp.Setlist) < itemsPerPage {
			break
		}
	}

	if len(all) > max {
		all = all[:max]
	}
	return all, nil
}

// SaveRaw writes setlists as indented JSON to path, creating parent
// directories as needed.
func (c *Client) SaveRaw(setlists []Setlist, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating raw data directory: %w", err)
	}

	data, err := json.MarshalIndent(setlists, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding raw setlists: %w", err)
	}

	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("writing raw setlists: %w", err)
	}

	c.logger.Info("saved raw data", "path", path, "setlists", len(setlists))
	return nil
}

// LoadRaw reads a raw setlist dump previously written by SaveRaw.
func LoadRaw(path string) ([]Setlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading raw setlists: %w", err)
	}

	var setlists []Setlist
	if err := json.Unmarshal(data, &setlists); err != nil {
		return nil, fmt.Errorf("decoding raw setlists: %w", err)
	}
	return setlists, nil
}

// get performs one paced, authenticated GET and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response for %s: %w", path, err)
	}
	return nil
}
