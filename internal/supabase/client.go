// Package supabase is a small client for the Supabase REST (PostgREST) and
// Auth APIs.
package supabase

import (
	"bytes"
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

	"iamblessed-funnel-go/internal/models"
)

var ErrUnauthorized = errors.New("supabase: unauthorized")

// Client is a Supabase REST API client.
type Client struct {
	baseURL    string
	apiKey     string
	anonKey    string
	httpClient *http.Client
}

// NewClient creates a client from config. The service key is used for table
// access, the anon key for validating user tokens.
func NewClient(cfg models.SupabaseConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	apiKey := cfg.ServiceKey
	if apiKey == "" {
		apiKey = cfg.AnonKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	anonKey := cfg.AnonKey
	if anonKey == "" {
		anonKey = apiKey
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     apiKey,
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table, params: url.Values{}}
}

// QueryBuilder builds PostgREST queries.
type QueryBuilder struct {
	client *Client
	table  string
	params url.Values
	orders []string
}

func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.params.Set("select", columns)
	return q
}

func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	q.params.Add(column, fmt.Sprintf("eq.%v", value))
	return q
}

func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	q.params.Add(column, fmt.Sprintf("gte.%v", value))
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	if n > 0 {
		q.params.Set("limit", strconv.Itoa(n))
	}
	return q
}

func (q *QueryBuilder) url() string {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)
	if len(q.orders) > 0 {
		q.params.Set("order", strings.Join(q.orders, ","))
	}
	if len(q.params) > 0 {
		reqURL += "?" + q.params.Encode()
	}
	return reqURL
}

// Execute runs the SELECT and decodes the rows into out.
func (q *QueryBuilder) Execute(ctx context.Context, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q.client.setHeaders(req, q.client.apiKey)

	body, err := q.client.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal rows: %w", err)
	}
	return nil
}

// Insert inserts rows into the table.
func (q *QueryBuilder) Insert(ctx context.Context, rows any) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.url(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q.client.setHeaders(req, q.client.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	_, err = q.client.do(req)
	return err
}

// User is a Supabase Auth user.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	Role         string         `json:"role"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// IsAdmin reports whether the user carries the admin role in app metadata.
func (u *User) IsAdmin() bool {
	role, _ := u.AppMetadata["role"].(string)
	return role == models.RoleAdmin
}

// GetUser resolves an access token to its user through /auth/v1/user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	if user.ID == "" {
		return nil, ErrUnauthorized
	}
	return &user, nil
}

func (c *Client) setHeaders(req *http.Request, key string) {
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 400:
		return nil, responseError(resp.StatusCode, body)
	}
	return body, nil
}

func responseError(status int, body []byte) error {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return fmt.Errorf("supabase error (%d): %s", status, errResp.Message)
		}
		if errResp.Error != "" {
			return fmt.Errorf("supabase error (%d): %s", status, errResp.Error)
		}
	}
	return fmt.Errorf("supabase error: status %d", status)
}
