// Package pets fetches random dog and cat pictures for the daily puzzle post
// and the doggo/catto commands.
package pets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wordle-club/wordle-bot/internal/domain/shared"
	"github.com/wordle-club/wordle-bot/pkg/circuitbreaker"
	"github.com/wordle-club/wordle-bot/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultDogURL returns {"message": "<image url>", "status": "success"}.
	DefaultDogURL = "https://dog.ceo/api/breeds/image/random"

	// DefaultCatURL returns {"_id": "...", "url": "/cat/..."} with ?json=true.
	DefaultCatURL = "https://cataas.com/cat?json=true"
)

// ClientConfig contains configuration for the pets client.
type ClientConfig struct {
	// DogURL is the random dog endpoint
	DogURL string

	// CatURL is the random cat endpoint
	CatURL string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Retry overrides the default retry policy
	Retry *retry.Policy

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns the public endpoints with a short timeout.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DogURL:  DefaultDogURL,
		CatURL:  DefaultCatURL,
		Timeout: 10 * time.Second,
	}
}

// Kind selects the animal.
type Kind string

const (
	Dog Kind = "dog"
	Cat Kind = "cat"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client fetches random pet image URLs.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	policy     retry.Policy

	dogBreaker *circuitbreaker.Breaker
	catBreaker *circuitbreaker.Breaker

	// pick chooses between dog and cat in Random.
	pick func() Kind
}

// NewClient creates a new pets client.
func NewClient(config ClientConfig) *Client {
	if config.DogURL == "" {
		config.DogURL = DefaultDogURL
	}
	if config.CatURL == "" {
		config.CatURL = DefaultCatURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	policy := retry.PetsAPI()
	if config.Retry != nil {
		policy = *config.Retry
	}
	policy.RetryIf = isRetryable

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     config.Logger,
		policy:     policy,
		dogBreaker: circuitbreaker.PetsAPI("dog"),
		catBreaker: circuitbreaker.PetsAPI("cat"),
		pick: func() Kind {
			if rand.IntN(2) == 0 {
				return Dog
			}
			return Cat
		},
	}
}

// RandomDog returns the URL of a random dog picture.
func (c *Client) RandomDog(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := c.fetch(ctx, c.dogBreaker, c.config.DogURL, &resp); err != nil {
		return "", err
	}
	if resp.Message == "" {
		return "", shared.WrapError("pets", "RandomDog", shared.ErrExternalService, "dog api returned no image", shared.ErrPetsAPIBadResponse)
	}
	return resp.Message, nil
}

// RandomCat returns the URL of a random cat picture. The API answers with a
// path relative to its host, or only an id on older deployments.
func (c *Client) RandomCat(ctx context.Context) (string, error) {
	var resp struct {
		ID  string `json:"_id"`
		URL string `json:"url"`
	}
	if err := c.fetch(ctx, c.catBreaker, c.config.CatURL, &resp); err != nil {
		return "", err
	}

	base := baseURL(c.config.CatURL)
	switch {
	case strings.HasPrefix(resp.URL, "http://"), strings.HasPrefix(resp.URL, "https://"):
		return resp.URL, nil
	case resp.URL != "":
		return base + "/" + strings.TrimPrefix(resp.URL, "/"), nil
	case resp.ID != "":
		return base + "/cat/" + resp.ID, nil
	default:
		return "", shared.WrapError("pets", "RandomCat", shared.ErrExternalService, "cat api returned no image", shared.ErrPetsAPIBadResponse)
	}
}

// Random returns a dog or a cat with equal odds.
func (c *Client) Random(ctx context.Context) (string, error) {
	if c.pick() == Dog {
		return c.RandomDog(ctx)
	}
	return c.RandomCat(ctx)
}

// Get returns a picture of the given kind.
func (c *Client) Get(ctx context.Context, kind Kind) (string, error) {
	switch kind {
	case Dog:
		return c.RandomDog(ctx)
	case Cat:
		return c.RandomCat(ctx)
	default:
		return c.Random(ctx)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// statusError is a non-2xx answer from a pets endpoint.
type statusError struct {
	URL    string
	Status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("pets api %s returned %d", e.URL, e.Status)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	var syntaxErr *json.SyntaxError
	return !errors.As(err, &syntaxErr)
}

func (c *Client) fetch(ctx context.Context, breaker *circuitbreaker.Breaker, endpoint string, dest any) error {
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return breaker.Execute(ctx, func(ctx context.Context) error {
			return c.doRequest(ctx, endpoint, dest)
		})
	})
	if err == nil {
		return nil
	}

	c.logger.Warn("pets api request failed",
		"breaker", breaker.Name(),
		"state", breaker.State().String(),
		"trips", breaker.Trips(),
		"error", err,
	)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return shared.WrapError("pets", breaker.Name(), shared.ErrServiceUnavailable, "pets api temporarily disabled", shared.ErrPetsAPIUnavailable)
	}
	return shared.WrapError("pets", breaker.Name(), shared.ErrExternalService, "pets api request failed", err)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &statusError{URL: endpoint, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// baseURL strips path and query: https://cataas.com/cat?json=true -> https://cataas.com
func baseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}
