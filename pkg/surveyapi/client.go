// Package surveyapi is the write-side connector to the external survey
// system's HTTP API. Reads of survey data go straight to its database via
// the eav package; record imports and per-user survey links go through
// here because the API is the only supported write path.
package surveyapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrUpstream indicates the survey API rejected a request or answered
// with something other than the expected JSON.
var ErrUpstream = errors.New("surveyapi: upstream API error")

// Config locates the survey API and the public survey base URL.
type Config struct {
	APIURL    string        // e.g. https://redcap.example/api/
	Token     string        // project-scoped API token
	SurveyURL string        // public survey base, e.g. https://redcap.example/surveys/
	Domain    string        // email domain appended to login ids
	Timeout   time.Duration // per-request timeout
}

// DefaultConfig returns a config with standard timeouts; URL and token
// have no sensible defaults and must be supplied.
func DefaultConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}

// Client posts token-authenticated, URL-encoded form requests to the
// survey API.
type Client struct {
	apiURL string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a survey API client.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiURL: cfg.APIURL,
		token:  cfg.Token,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// request posts one form-encoded call. The token, content type and
// format=json fields ride along on every request.
func (c *Client) request(ctx context.Context, content string, params map[string]string) ([]byte, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("token", c.token)
	form.Set("content", content)
	form.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("surveyapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream,
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// AcceptJSON posts a call and decodes the JSON answer. An answer carrying
// an error field, or one that is not a JSON object, is an upstream error.
func (c *Client) AcceptJSON(ctx context.Context, content, action string, params map[string]string) (map[string]any, error) {
	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	if action != "" {
		merged["action"] = action
	}

	body, err := c.request(ctx, content, merged)
	if err != nil {
		return nil, err
	}

	var ans map[string]any
	if err := json.Unmarshal(body, &ans); err != nil {
		return nil, fmt.Errorf("%w: non-JSON answer: %s", ErrUpstream,
			strings.TrimSpace(string(body)))
	}
	if msg, ok := ans["error"]; ok {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, msg)
	}
	c.logger.Debug("survey API answer", "content", content, "action", action)
	return ans, nil
}

// PostJSON posts a call whose data field is a JSON-encoded record list and
// returns the raw answer.
func (c *Client) PostJSON(ctx context.Context, content string, data []map[string]string, params map[string]string) ([]byte, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("surveyapi: encode records: %w", err)
	}

	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged["data"] = string(encoded)

	c.logger.Debug("posting records to survey API",
		"content", content, "records", len(data))
	return c.request(ctx, content, merged)
}

// ImportRecords imports data records into the survey project.
func (c *Client) ImportRecords(ctx context.Context, data []map[string]string, params map[string]string) ([]byte, error) {
	merged := map[string]string{"action": "import"}
	for k, v := range params {
		merged[k] = v
	}
	return c.PostJSON(ctx, "record", data, merged)
}

// SurveySetup builds per-user survey invitation links.
type SurveySetup struct {
	client    *Client
	surveyURL string
	domain    string
}

// NewSurveySetup creates a link builder over the given client.
func NewSurveySetup(client *Client, surveyURL, domain string) *SurveySetup {
	return &SurveySetup{client: client, surveyURL: surveyURL, domain: domain}
}

// Link obtains a per-user survey code and builds the invitation URL:
// the survey base with s=<code> followed by the extra parameters in
// sorted order. With multi=true the survey accepts repeat responses.
func (s *SurveySetup) Link(ctx context.Context, userID string, params map[string]string, multi bool) (string, error) {
	multiFlag := "no"
	if multi {
		multiFlag = "yes"
	}
	ans, err := s.client.AcceptJSON(ctx, "survey", "setup", map[string]string{
		"multi": multiFlag,
		"email": userID + "@" + s.domain,
	})
	if err != nil {
		return "", err
	}
	code, ok := ans["hash"].(string)
	if !ok || code == "" {
		return "", fmt.Errorf("%w: survey setup answer has no hash", ErrUpstream)
	}

	base, err := url.Parse(s.surveyURL)
	if err != nil {
		return "", fmt.Errorf("surveyapi: bad survey URL %q: %w", s.surveyURL, err)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := []string{"s=" + url.QueryEscape(code)}
	for _, k := range keys {
		pairs = append(pairs,
			url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	base.RawQuery = strings.Join(pairs, "&")
	return base.String(), nil
}
