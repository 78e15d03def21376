// Package client is a small API client for reporting and export tooling.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/veratrail/veratrail"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	client    *http.Client
	cache     *cache.Cache
	baseURL   string
	token     string
	userAgent string
}

func New(baseURL string, token string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(1*time.Minute, 5*time.Minute),
		baseURL:   baseURL,
		token:     token,
		userAgent: "veratrail-client",
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+c.token)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) httpRequest(ctx context.Context, method, path string, response any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr veratrail.APIError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Code != "" {
			return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}

// GetDocument fetches one document. Responses are cached briefly; export runs
// walking the audit trail re-read the same documents repeatedly.
func (c *Client) GetDocument(ctx context.Context, id string) (veratrail.Document, error) {
	cacheKey := "document:" + id
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(veratrail.Document), nil
	}

	var doc veratrail.Document
	err := c.httpRequest(ctx, http.MethodGet, "/api/v1/documents/"+url.PathEscape(id), &doc)
	if err != nil {
		return veratrail.Document{}, err
	}

	c.cache.Set(cacheKey, doc, cache.DefaultExpiration)
	return doc, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (veratrail.User, error) {
	cacheKey := "user:" + id
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(veratrail.User), nil
	}

	var user veratrail.User
	err := c.httpRequest(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(id), &user)
	if err != nil {
		return veratrail.User{}, err
	}

	c.cache.Set(cacheKey, user, cache.DefaultExpiration)
	return user, nil
}

// QueryAudit reads one page of the audit trail, newest first.
func (c *Client) QueryAudit(ctx context.Context, targetType, targetID, category string, limit, offset int) (veratrail.AuditPage, error) {
	query := url.Values{}
	if targetType != "" {
		query.Set("targetType", targetType)
	}
	if targetID != "" {
		query.Set("targetId", targetID)
	}
	if category != "" {
		query.Set("category", category)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	var page veratrail.AuditPage
	err := c.httpRequest(ctx, http.MethodGet, "/api/v1/audit?"+query.Encode(), &page)
	if err != nil {
		return veratrail.AuditPage{}, err
	}
	return page, nil
}

// ExportAuditTrail walks every page of a target's trail.
func (c *Client) ExportAuditTrail(ctx context.Context, targetType, targetID string) ([]veratrail.AuditEntry, error) {
	var entries []veratrail.AuditEntry
	offset := 0
	for {
		page, err := c.QueryAudit(ctx, targetType, targetID, "", 100, offset)
		if err != nil {
			return nil, err
		}
		entries = append(entries, page.Entries...)
		offset += len(page.Entries)
		if len(page.Entries) == 0 || int64(offset) >= page.Total {
			return entries, nil
		}
	}
}
