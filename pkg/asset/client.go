// client.go - Thin REST client for the backend's public asset and template endpoints.
package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xob0t/GoBiodata/pkg/template"
)

// envelope is the backend response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type apiAsset struct {
	ID           string `json:"_id"`
	URL          string `json:"url"`
	Category     string `json:"category"`
	OriginalName string `json:"originalName"`
}

type apiTemplate struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Media       string `json:"media"`
	Type        string `json:"type"`
}

// Client talks to the backend REST API.
type Client struct {
	BaseURL string
	Token   string // sent as a bearer token when set
	HTTP    *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Assets lists the admin-uploaded assets of a category. Relative URLs are prefixed with
// the API base.
func (c *Client) Assets(ctx context.Context, category Category) ([]Asset, error) {
	var raw []apiAsset
	endpoint := "/api/assets/public?category=" + url.QueryEscape(string(category))
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	out := make([]Asset, 0, len(raw))
	for _, a := range raw {
		if a.URL == "" {
			continue
		}
		out = append(out, Asset{
			ID:           a.ID,
			URL:          c.prefixURL(a.URL),
			Category:     category,
			OriginalName: a.OriginalName,
		})
	}
	return out, nil
}

// Templates lists the published templates with their types normalized.
func (c *Client) Templates(ctx context.Context) ([]TemplateRecord, error) {
	var raw []apiTemplate
	if err := c.getJSON(ctx, "/api/templates/public", &raw); err != nil {
		return nil, err
	}

	out := make([]TemplateRecord, 0, len(raw))
	for _, t := range raw {
		cat := t.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		media := t.Media
		if media == "" {
			media = DefaultTemplateMedia
		}
		out = append(out, TemplateRecord{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Category:    cat,
			Media:       c.prefixURL(media),
			Type:        template.NormalizeTemplateType(t.Type),
		})
	}
	return out, nil
}

func (c *Client) prefixURL(u string) string {
	if strings.HasPrefix(u, "/") {
		return c.BaseURL + u
	}
	return u
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer func() {
		if cerr := res.Body.Close(); cerr != nil {
			slog.Warn("close response body", slog.Any("error", cerr))
		}
	}()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP status %d", endpoint, res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", endpoint, err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s data: %w", endpoint, err)
	}
	return nil
}
