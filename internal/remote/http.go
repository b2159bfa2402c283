package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/offlingo/offlingo/internal/store"
)

// Config holds the connection settings for the remote service.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each attempt, so retry delays never compound with an
	// unbounded request.
	Timeout time.Duration
	Logger  *slog.Logger
}

// HTTPClient implements Client against the remote JSON API.
type HTTPClient struct {
	http *resty.Client
}

// NewHTTPClient creates a Client for the service at cfg.BaseURL. Every round
// trip is logged at debug level with its method, URL, status and duration.
func NewHTTPClient(cfg Config) *HTTPClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		logger.Debug("remote call",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"duration", res.Time())
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		logger.Debug("remote call failed", "method", req.Method, "url", req.URL, "error", err)
	})
	return &HTTPClient{http: client}
}

func statusError(res *resty.Response) error {
	return &StatusError{StatusCode: res.StatusCode(), Body: res.Body()}
}

// ListLanguages returns all languages known to the service.
func (c *HTTPClient) ListLanguages(ctx context.Context) ([]store.Language, error) {
	var langs []store.Language
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&langs).
		Get("/api/languages")
	if err != nil {
		return nil, fmt.Errorf("client.R.Get(languages) > %w", err)
	}
	if res.IsError() {
		return nil, statusError(res)
	}
	return langs, nil
}

// GetLanguage returns one language by id.
func (c *HTTPClient) GetLanguage(ctx context.Context, id int64) (*store.Language, error) {
	var out store.Language
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/languages/" + strconv.FormatInt(id, 10))
	if err != nil {
		return nil, fmt.Errorf("client.R.Get(language) > %w", err)
	}
	if res.IsError() {
		return nil, statusError(res)
	}
	return &out, nil
}

// CreateLanguage creates a language and returns the server record.
func (c *HTTPClient) CreateLanguage(ctx context.Context, lang store.Language) (*store.Language, error) {
	var created store.Language
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(lang).
		SetResult(&created).
		Post("/api/languages")
	if err != nil {
		return nil, fmt.Errorf("client.R.Post(language) > %w", err)
	}
	if res.IsError() {
		return nil, statusError(res)
	}
	return &created, nil
}

// UpdateLanguage updates a language and returns the server record.
func (c *HTTPClient) UpdateLanguage(ctx context.Context, lang store.Language) (*store.Language, error) {
	var updated store.Language
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(lang).
		SetResult(&updated).
		Put("/api/languages/" + strconv.FormatInt(lang.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("client.R.Put(language) > %w", err)
	}
	if res.IsError() {
		return nil, statusError(res)
	}
	return &updated, nil
}

// DeleteLanguage deletes a language by id.
func (c *HTTPClient) DeleteLanguage(ctx context.Context, id int64) error {
	res, err := c.http.R().
		SetContext(ctx).
		Delete("/api/languages/" + strconv.FormatInt(id, 10))
	if err != nil {
		return fmt.Errorf("client.R.Delete(language) > %w", err)
	}
	if res.IsError() {
		return statusError(res)
	}
	return nil
}

// ListFlashcards returns flashcards matching params.
func (c *HTTPClient) ListFlashcards(ctx context.Context, params ListFlashcardsParams) ([]store.Flashcard, error) {
	req := c.http.R().SetContext(ctx)
	if params.LanguageID != 0 {
		req.SetQueryParam("language_id", strconv.FormatInt(params.LanguageID, 10))
	}
	if params.Search != "" {
		req.SetQueryParam("q", params.Search)
	}

	var cards []store.Flashcard
	res, err := req.SetResult(&cards).Get("/api/flashcards")
	if err != nil {
		return nil, fmt.Errorf("client.R.Get(flashcards) > %w", err)
	}
	if res.IsError() {
		return nil, statusError(res)
	}
	return cards, nil
}

// GetFlashcard returns one flashcard by id.
func (c *HTTPClient) GetFlashcard(ctx context.Context, id int64) (*store.Flashcard, error) {
	var card store.Flashcard
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&card).
		Get("/api/flashcards/" + strconv.FormatInt(id, 10))
	if err != nil {
		return nil, fmt.Errorf("client.R.Get(flashcard) > %w", err)
	}
	if res.IsError() {
		return nil, statusError(res)
	}
	return &card, nil
}

// CreateFlashcard creates a flashcard and returns the server record with its
// server-assigned id.
func (c *HTTPClient) CreateFlashcard(ctx context.Context, card store.Flashcard) (*store.Flashcard, error) {
	var created store.Flashcard
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(card).
		SetResult(&created).
		Post("/api/flashcards")
	if err != nil {
		return nil, fmt.Errorf("client.R.Post(flashcard) > %w", err)
	}
	if res.IsError() {
		return nil, statusError(res)
	}
	return &created, nil
}

// UpdateFlashcard updates a flashcard and returns the server record.
func (c *HTTPClient) UpdateFlashcard(ctx context.Context, card store.Flashcard) (*store.Flashcard, error) {
	var updated store.Flashcard
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(card).
		SetResult(&updated).
		Put("/api/flashcards/" + strconv.FormatInt(card.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("client.R.Put(flashcard) > %w", err)
	}
	if res.IsError() {
		return nil, statusError(res)
	}
	return &updated, nil
}

// DeleteFlashcard deletes a flashcard by id.
func (c *HTTPClient) DeleteFlashcard(ctx context.Context, id int64) error {
	res, err := c.http.R().
		SetContext(ctx).
		Delete("/api/flashcards/" + strconv.FormatInt(id, 10))
	if err != nil {
		return fmt.Errorf("client.R.Delete(flashcard) > %w", err)
	}
	if res.IsError() {
		return statusError(res)
	}
	return nil
}

// FetchAsset downloads a binary asset by URL.
func (c *HTTPClient) FetchAsset(ctx context.Context, url string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("client.R.Get(asset) > %w", err)
	}
	if res.IsError() {
		return nil, statusError(res)
	}
	return res.Body(), nil
}

// Ping reports whether the service answers its health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	res, err := c.http.R().
		SetContext(ctx).
		Get("/api/health")
	if err != nil {
		return fmt.Errorf("client.R.Get(health) > %w", err)
	}
	if res.IsError() {
		return statusError(res)
	}
	return nil
}
