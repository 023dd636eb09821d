package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lirancohen/vitals/action"
)

// DefaultTimeout bounds one configuration fetch.
const DefaultTimeout = 10 * time.Second

// configSchema validates the shape of an event configuration document
// before it is trusted. The configuration service is external; a
// malformed document fails the request rather than producing surprise
// validation behavior downstream.
const configSchema = `{
	"type": "object",
	"required": ["event_type", "pages"],
	"properties": {
		"event_type": {"type": "string", "minLength": 1},
		"pages": {"type": "array", "items": {"$ref": "#/$defs/page"}},
		"review": {
			"type": "object",
			"additionalProperties": {"type": "array", "items": {"$ref": "#/$defs/page"}}
		}
	},
	"$defs": {
		"page": {
			"type": "object",
			"required": ["id", "kind", "fields"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"kind": {"enum": ["form", "verification", "annotation"]},
				"conditionals": {"type": "array", "items": {"type": "string"}},
				"fields": {"type": "array", "items": {"$ref": "#/$defs/field"}}
			}
		},
		"field": {
			"type": "object",
			"required": ["id", "type"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"type": {"enum": ["text", "number", "date", "select", "checkbox"]},
				"required": {"type": "boolean"},
				"conditionals": {"type": "array", "items": {"type": "string"}},
				"options": {"type": "array", "items": {"type": "string"}},
				"pattern": {"type": "string"}
			}
		}
	}
}`

var compiledConfigSchema = jsonschema.MustCompileString("eventconfig.json", configSchema)

// Client fetches event configurations from the external configuration
// service. The fetched document is validated against an embedded JSON
// Schema before use and treated as read-only per-request input.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a configuration client for the given base URL.
// If httpClient is nil, a client with DefaultTimeout is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// GetEventConfiguration fetches the declaration schema for an event type.
// The bearer token is forwarded to the configuration service.
func (c *Client) GetEventConfiguration(ctx context.Context, eventType action.EventType, token string) (EventConfig, error) {
	url := fmt.Sprintf("%s/events/%s/configuration", c.baseURL, eventType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return EventConfig{}, fmt.Errorf("build config request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return EventConfig{}, fmt.Errorf("fetch event configuration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return EventConfig{}, fmt.Errorf("fetch event configuration: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return EventConfig{}, fmt.Errorf("read event configuration: %w", err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return EventConfig{}, fmt.Errorf("decode event configuration: %w", err)
	}
	if err := compiledConfigSchema.Validate(doc); err != nil {
		return EventConfig{}, fmt.Errorf("invalid event configuration: %w", err)
	}

	var cfg EventConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return EventConfig{}, fmt.Errorf("decode event configuration: %w", err)
	}
	return cfg, nil
}
