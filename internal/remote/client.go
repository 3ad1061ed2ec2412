package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/storesync/internal/model"
)

const userAgent = "storesync/1.0"

// DefaultTimeout bounds every remote HTTP call.
const DefaultTimeout = 15 * time.Second

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote status %d", e.StatusCode)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Token returns the bearer token for each request. Optional.
	Token   func() string
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client is the HTTP implementation of ProfileStore and CatalogService.
// It also exposes the session verification and order endpoints used by the
// checkout collaborator.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      func() string
}

// NewClient creates a client for the remote base URL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote base URL %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
	}, nil
}

// === Profiles ===

// GetProfile fetches the raw profile document.
func (c *Client) GetProfile(ctx context.Context, userID string) (map[string]any, error) {
	var doc map[string]any
	if err := c.call(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID), nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// PatchProfile merges fields into the profile document.
func (c *Client) PatchProfile(ctx context.Context, userID string, fields map[string]any) error {
	return c.call(ctx, http.MethodPatch, "/profiles/"+url.PathEscape(userID), fields, nil)
}

type favoriteRow struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

// ListFavorites returns the product ids of the user's favorite join rows.
func (c *Client) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	var rows []favoriteRow
	if err := c.call(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID)+"/favorites", nil, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ProductID)
	}
	return ids, nil
}

// AddFavorite inserts the (user, product) join row.
func (c *Client) AddFavorite(ctx context.Context, userID, productID string) error {
	return c.call(ctx, http.MethodPut, favoritePath(userID, productID), nil, nil)
}

// RemoveFavorite deletes the (user, product) join row.
func (c *Client) RemoveFavorite(ctx context.Context, userID, productID string) error {
	return c.call(ctx, http.MethodDelete, favoritePath(userID, productID), nil, nil)
}

func favoritePath(userID, productID string) string {
	return "/profiles/" + url.PathEscape(userID) + "/favorites/" + url.PathEscape(productID)
}

// ListMissions returns the user's mission rows.
func (c *Client) ListMissions(ctx context.Context, userID string) ([]model.MissionProgress, error) {
	var rows []model.MissionProgress
	if err := c.call(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID)+"/missions", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertMission writes one mission row.
func (c *Client) UpsertMission(ctx context.Context, userID string, p model.MissionProgress) error {
	path := "/profiles/" + url.PathEscape(userID) + "/missions/" + url.PathEscape(p.MissionID)
	return c.call(ctx, http.MethodPut, path, p, nil)
}

// InsertInventory records a reward grant.
func (c *Client) InsertInventory(ctx context.Context, g model.InventoryGrant) error {
	return c.call(ctx, http.MethodPost, "/profiles/"+url.PathEscape(g.UserID)+"/inventory", g, nil)
}

// === Catalog ===

// ListProducts returns the product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.call(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListReviews returns every review.
func (c *Client) ListReviews(ctx context.Context) ([]model.Review, error) {
	var reviews []model.Review
	if err := c.call(ctx, http.MethodGet, "/reviews", nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// InsertReview stores a review.
func (c *Client) InsertReview(ctx context.Context, r model.Review) error {
	return c.call(ctx, http.MethodPost, "/reviews", r, nil)
}

// === Auth and orders ===

// VerifySession asks the remote which user the bearer token belongs to.
// A rejected token yields model.ErrSessionExpired.
func (c *Client) VerifySession(ctx context.Context) (string, error) {
	var resp struct {
		UserID string `json:"user_id"`
	}
	if err := c.call(ctx, http.MethodGet, "/auth/verify", nil, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("verify session: %w", model.ErrSessionExpired)
		}
		return "", err
	}
	return resp.UserID, nil
}

// IssueToken asks the remote to issue a session for a user. Only the twin
// backend exposes this endpoint.
func (c *Client) IssueToken(ctx context.Context, userID, email string, metadata map[string]any) (TokenPair, error) {
	body := map[string]any{"user_id": userID, "email": email, "user_metadata": metadata}
	var pair TokenPair
	if err := c.call(ctx, http.MethodPost, "/auth/token", body, &pair); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// PlaceOrder charges an order.
func (c *Client) PlaceOrder(ctx context.Context, o Order) (Receipt, error) {
	var r Receipt
	if err := c.call(ctx, http.MethodPost, "/orders", o, &r); err != nil {
		return Receipt{}, err
	}
	return r, nil
}

// === HTTP helpers ===

func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.do(req, result)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, data)
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

func parseError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload) // best effort

	se := &StatusError{StatusCode: status, Message: payload.Error}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", model.ErrNotFound, se)
	}
	return se
}
