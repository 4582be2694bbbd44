package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/braunma/hedgehog-topology-planner/internal/constants"
	"github.com/braunma/hedgehog-topology-planner/pkg/utils"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
)

// Config holds the connection settings of a NetBoxClient
type Config struct {
	URL    string
	Token  string
	DryRun bool
	// InsecureSkipVerify disables TLS verification for lab instances with self-signed certs
	InsecureSkipVerify bool
	Timeout            time.Duration
	// MaxRetries bounds the attempts for throttled or unavailable responses; 0 means 3
	MaxRetries uint
}

// NetBoxClient handles all NetBox API operations
type NetBoxClient struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	cache        *CacheManager
	tagManager   *TagManager
	logger       *utils.Logger
	dryRun       bool
	maxRetries   uint
	managedTagID int
}

// NewClient creates a new NetBox API client and makes sure the managed tag exists
func NewClient(ctx context.Context, cfg Config, logger *utils.Logger) (*NetBoxClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("netbox url is required")
	}
	if logger == nil {
		logger = utils.NewLogger(cfg.DryRun)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := &NetBoxClient{
		baseURL:    trimSlash(cfg.URL),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		logger:     logger,
		dryRun:     cfg.DryRun,
		maxRetries: maxRetries,
	}

	client.cache = NewCacheManager()
	client.tagManager = NewTagManager(client)

	tagID, err := client.tagManager.Ensure(ctx, TagSpec{
		Slug:        constants.ManagedTagSlug,
		Name:        constants.ManagedTagName,
		Color:       constants.ManagedTagColor,
		Description: constants.ManagedTagDescription,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure managed tag: %w", err)
	}
	client.managedTagID = tagID

	return client, nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// Object represents a generic NetBox object
type Object = map[string]interface{}

// APIError is returned for any response with status >= 400
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Request makes an HTTP request to the NetBox API. Writes are only logged in dry-run mode.
func (c *NetBoxClient) Request(ctx context.Context, method, path string, body interface{}) (Object, error) {
	if c.dryRun && isWrite(method) {
		c.logger.DryRun(method, path)
		return Object{"id": 0}, nil
	}

	respBody, err := c.do(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if len(respBody) == 0 {
		return nil, nil
	}

	var result Object
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result, nil
}

// retryable reports whether a response status means the request was not processed
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// do sends one request, retrying throttled and unavailable responses with
// exponential backoff. Transport errors are retried for reads only.
func (c *NetBoxClient) do(ctx context.Context, method, rawURL string, body interface{}) ([]byte, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	attempt := 0
	return backoff.Retry(ctx, func() ([]byte, error) {
		if attempt > 0 {
			c.logger.Warning("Retrying %s %s (attempt %d)", method, rawURL, attempt+1)
		}
		attempt++

		respBody, err := c.send(ctx, method, rawURL, jsonBody)
		var apiErr *APIError
		switch {
		case err == nil:
			return respBody, nil
		case errors.As(err, &apiErr):
			if retryable(apiErr.StatusCode) {
				return nil, err
			}
		case !isWrite(method) && ctx.Err() == nil:
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(c.maxRetries))
}

func (c *NetBoxClient) send(ctx context.Context, method, rawURL string, jsonBody []byte) ([]byte, error) {
	var bodyReader io.Reader
	if jsonBody != nil {
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{Method: method, Path: req.URL.Path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// encodeFilters renders filters as a stable query string
func encodeFilters(filters map[string]interface{}) string {
	if len(filters) == 0 {
		return ""
	}
	values := url.Values{}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := filters[k].(type) {
		case []string:
			for _, item := range v {
				values.Add(k, item)
			}
		case []int:
			for _, item := range v {
				values.Add(k, fmt.Sprint(item))
			}
		default:
			values.Set(k, fmt.Sprint(v))
		}
	}
	return "?" + values.Encode()
}

// List makes a GET request and returns every object, following pagination
func (c *NetBoxClient) List(ctx context.Context, path string, filters map[string]interface{}) ([]Object, error) {
	next := c.baseURL + path + encodeFilters(filters)

	var all []Object
	for next != "" {
		respBody, err := c.do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}

		var page struct {
			Next    *string  `json:"next"`
			Results []Object `json:"results"`
		}
		if err := json.Unmarshal(respBody, &page); err != nil {
			// Some endpoints return a bare array
			var direct []Object
			if err2 := json.Unmarshal(respBody, &direct); err2 == nil {
				return append(all, direct...), nil
			}
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		all = append(all, page.Results...)
		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return all, nil
}

// Get retrieves a single object by ID
func (c *NetBoxClient) Get(ctx context.Context, app, endpoint string, id int) (Object, error) {
	path := fmt.Sprintf("/api/%s/%s/%d/", app, endpoint, id)
	return c.Request(ctx, http.MethodGet, path, nil)
}

// Filter retrieves objects matching the given filters
func (c *NetBoxClient) Filter(ctx context.Context, app, endpoint string, filters map[string]interface{}) ([]Object, error) {
	path := fmt.Sprintf("/api/%s/%s/", app, endpoint)
	return c.List(ctx, path, filters)
}

// Create creates a new object
func (c *NetBoxClient) Create(ctx context.Context, app, endpoint string, data map[string]interface{}) (Object, error) {
	path := fmt.Sprintf("/api/%s/%s/", app, endpoint)
	return c.Request(ctx, http.MethodPost, path, data)
}

// Update updates an existing object
func (c *NetBoxClient) Update(ctx context.Context, app, endpoint string, id int, data map[string]interface{}) error {
	path := fmt.Sprintf("/api/%s/%s/%d/", app, endpoint, id)
	_, err := c.Request(ctx, http.MethodPatch, path, data)
	return err
}

// Delete deletes an object
func (c *NetBoxClient) Delete(ctx context.Context, app, endpoint string, id int) error {
	path := fmt.Sprintf("/api/%s/%s/%d/", app, endpoint, id)
	_, err := c.Request(ctx, http.MethodDelete, path, nil)
	return err
}

// Apply creates or updates an object (idempotent). The managed tag and any
// extra tag IDs are merged into the payload.
func (c *NetBoxClient) Apply(ctx context.Context, app, endpoint string, lookup, payload map[string]interface{}, extraTags ...int) (Object, error) {
	payload = c.tagManager.InjectTags(payload, append([]int{c.managedTagID}, extraTags...)...)
	return c.apply(ctx, app, endpoint, lookup, payload)
}

// ApplyUntagged is Apply for endpoints without tag support
func (c *NetBoxClient) ApplyUntagged(ctx context.Context, app, endpoint string, lookup, payload map[string]interface{}) (Object, error) {
	return c.apply(ctx, app, endpoint, lookup, payload)
}

func (c *NetBoxClient) apply(ctx context.Context, app, endpoint string, lookup, payload map[string]interface{}) (Object, error) {
	c.logger.Debug("  → Applying %s with lookup: %v", endpoint, lookup)

	existing, err := c.Filter(ctx, app, endpoint, lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to filter objects: %w", err)
	}

	if len(existing) == 0 {
		c.logger.Success("  Creating %s: %v", endpoint, c.formatLookup(lookup))
		c.printDiff("CREATE", nil, payload)
		return c.Create(ctx, app, endpoint, payload)
	}

	obj := existing[0]
	objID := utils.GetIDFromObject(obj)
	if objID == 0 {
		return nil, fmt.Errorf("object has no ID")
	}

	changes := c.calculateDiff(obj, payload)
	if len(changes) > 0 {
		c.logger.Info("  ⟳ Updating %s (ID: %d): %v", endpoint, objID, c.formatLookup(lookup))
		c.printDiff("UPDATE", obj, changes)
		if err := c.Update(ctx, app, endpoint, objID, changes); err != nil {
			return nil, fmt.Errorf("failed to update object: %w", err)
		}
	} else {
		c.logger.Debug("  = No changes for %s (ID: %d)", endpoint, objID)
	}

	return obj, nil
}

// formatLookup formats lookup criteria for display
func (c *NetBoxClient) formatLookup(lookup map[string]interface{}) string {
	if name, ok := lookup["name"]; ok {
		return fmt.Sprintf("name=%v", name)
	}
	if slug, ok := lookup["slug"]; ok {
		return fmt.Sprintf("slug=%v", slug)
	}
	if len(lookup) == 0 {
		return "{}"
	}
	keys := utils.SortedKeys(lookup)
	return fmt.Sprintf("%s=%v", keys[0], lookup[keys[0]])
}

// printDiff prints a visual diff for console visibility
func (c *NetBoxClient) printDiff(action string, existing Object, changes map[string]interface{}) {
	if c.dryRun {
		return
	}

	c.logger.Debug("    ┌─ Changes ────────────────────")
	for _, key := range utils.SortedKeys(changes) {
		if key == "tags" {
			continue
		}
		newVal := changes[key]
		if action == "CREATE" {
			c.logger.Debug("    │ + %s: %v", key, c.formatValue(newVal))
			continue
		}

		oldVal := existing[key]
		if oldMap, ok := oldVal.(map[string]interface{}); ok {
			if id, ok := oldMap["id"]; ok {
				oldVal = id
			}
		}
		c.logger.Debug("    │ ~ %s: %v → %v", key, c.formatValue(oldVal), c.formatValue(newVal))
	}
	c.logger.Debug("    └──────────────────────────────")
}

// formatValue formats a value for display
func (c *NetBoxClient) formatValue(val interface{}) string {
	if val == nil {
		return "<nil>"
	}

	switch v := val.(type) {
	case string:
		return fmt.Sprintf("\"%s\"", v)
	case []interface{}:
		if len(v) == 0 {
			return "[]"
		}
		return fmt.Sprintf("[...%d items]", len(v))
	case map[string]interface{}:
		if id, ok := v["id"]; ok {
			return fmt.Sprintf("{id: %v}", id)
		}
		return "{...}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// calculateDiff compares existing object with desired state
func (c *NetBoxClient) calculateDiff(existing Object, desired map[string]interface{}) map[string]interface{} {
	changes := make(map[string]interface{})

	for key, desiredValue := range desired {
		if desiredValue == nil {
			continue
		}

		existingValue, exists := existing[key]
		if !exists {
			changes[key] = desiredValue
			continue
		}

		switch key {
		case "tags":
			if !tagsEqual(existingValue, desiredValue) {
				changes[key] = desiredValue
			}
			continue
		case "custom_fields":
			if !customFieldsEqual(existingValue, desiredValue) {
				changes[key] = desiredValue
			}
			continue
		}

		// Nested objects are compared by ID; choice fields by value
		if existingMap, ok := existingValue.(map[string]interface{}); ok {
			if v, ok := existingMap["value"]; ok {
				existingValue = v
			} else {
				existingValue = utils.GetIDFromObject(existingMap)
			}
		}

		if !valuesEqual(existingValue, desiredValue) {
			changes[key] = desiredValue
		}
	}

	return changes
}

// tagsEqual compares two tag lists as sets
func tagsEqual(existing, desired interface{}) bool {
	existingTags := extractTagIDs(existing)
	desiredTags := extractTagIDs(desired)

	if len(existingTags) != len(desiredTags) {
		return false
	}

	existingSet := make(map[int]bool, len(existingTags))
	for _, id := range existingTags {
		existingSet[id] = true
	}
	for _, id := range desiredTags {
		if !existingSet[id] {
			return false
		}
	}
	return true
}

// customFieldsEqual only checks the desired keys, NetBox returns every defined field
func customFieldsEqual(existing, desired interface{}) bool {
	e, _ := existing.(map[string]interface{})
	d, ok := desired.(map[string]interface{})
	if !ok {
		return true
	}
	for k, v := range d {
		if !valuesEqual(e[k], v) {
			return false
		}
	}
	return true
}

// extractTagIDs extracts tag IDs from various formats
func extractTagIDs(tags interface{}) []int {
	var ids []int

	switch v := tags.(type) {
	case []interface{}:
		for _, tag := range v {
			if id := utils.GetIDFromObject(tag); id != 0 {
				ids = append(ids, id)
			}
		}
	case []int:
		ids = v
	}

	return ids
}

// valuesEqual compares two values, tolerating JSON's float64 numbers
func valuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case float64:
		switch bv := b.(type) {
		case int:
			return av == float64(bv)
		case float64:
			return av == bv
		}
	case int:
		if bv, ok := b.(float64); ok {
			return float64(av) == bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
		return false
	}

	switch b.(type) {
	case []interface{}, map[string]interface{}, []int:
		return false
	}
	switch a.(type) {
	case []interface{}, map[string]interface{}:
		return false
	}
	return a == b
}

// Cache returns the cache manager
func (c *NetBoxClient) Cache() *CacheManager {
	return c.cache
}

// Tags returns the tag manager
func (c *NetBoxClient) Tags() *TagManager {
	return c.tagManager
}

// IsDryRun returns the dry-run status
func (c *NetBoxClient) IsDryRun() bool {
	return c.dryRun
}

// ManagedTagID returns the managed tag ID
func (c *NetBoxClient) ManagedTagID() int {
	return c.managedTagID
}

// Logger returns the logger
func (c *NetBoxClient) Logger() *utils.Logger {
	return c.logger
}
