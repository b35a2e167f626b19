package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	// DefaultHostedURL is the hosted API base URL.
	DefaultHostedURL = "https://api.softcatala.org/corrector/v2"
	// DefaultLocalURL is the locally spawned engine base URL.
	DefaultLocalURL = "http://localhost:8081/v2"

	// DefaultTimeout bounds one check request.
	DefaultTimeout = 30 * time.Second
	// DefaultProbeTimeout bounds one health probe.
	DefaultProbeTimeout = 2 * time.Second

	maxBodySize = 16 << 20
)

// Request is the input of one check call.
type Request struct {
	Text      string
	Language  string
	VerbForms VerbForms
}

// Client performs check and probe calls. It holds no per-backend state, so
// one Client serves every base URL.
type Client struct {
	http         *http.Client
	timeout      time.Duration
	probeTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-check timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithProbeTimeout sets the health probe timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// NewClient creates a client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:         &http.Client{},
		timeout:      DefaultTimeout,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check submits req to {baseURL}/check and returns the reported matches.
func (c *Client) Check(ctx context.Context, baseURL string, req Request) ([]Match, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := joinURL(baseURL, "check")

	form := url.Values{}
	form.Set("text", req.Text)
	form.Set("language", req.Language)
	if req.VerbForms != VerbFormsDefault {
		form.Set("verbForms", string(req.VerbForms))
	}
	form.Set("enabledOnly", "false")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "POST", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: "read", URL: endpoint, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	return ParseMatches(body)
}

// Probe issues GET {baseURL}/languages and succeeds on HTTP 200.
func (c *Client) Probe(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	endpoint := joinURL(baseURL, "languages")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "GET", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	return nil
}

// ParseMatches decodes a check reply. The body must be a JSON object with a
// "matches" array. Entries with a negative offset or non-positive length are
// skipped.
func ParseMatches(body []byte) ([]Match, error) {
	if !gjson.ValidBytes(body) {
		return nil, &MalformedResponseError{Reason: "invalid JSON"}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, &MalformedResponseError{Reason: "response is not an object"}
	}
	arr := root.Get("matches")
	if !arr.Exists() {
		return nil, &MalformedResponseError{Reason: `missing "matches"`}
	}
	if !arr.IsArray() {
		return nil, &MalformedResponseError{Reason: `"matches" is not an array`}
	}

	matches := make([]Match, 0, len(arr.Array()))
	for i, m := range arr.Array() {
		offset := m.Get("offset")
		length := m.Get("length")
		if offset.Type != gjson.Number || length.Type != gjson.Number {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("match %d: missing offset or length", i)}
		}
		if offset.Int() < 0 || length.Int() <= 0 {
			continue
		}

		var replacements []string
		m.Get("replacements.#.value").ForEach(func(_, v gjson.Result) bool {
			replacements = append(replacements, v.String())
			return true
		})

		matches = append(matches, Match{
			Offset:          int(offset.Int()),
			Length:          int(length.Int()),
			Message:         m.Get("message").String(),
			ShortMessage:    m.Get("shortMessage").String(),
			RuleID:          m.Get("rule.id").String(),
			RuleDescription: m.Get("rule.description").String(),
			Category:        ParseIssueCategory(m.Get("rule.issueType").String()),
			CategoryID:      m.Get("rule.category.id").String(),
			CategoryName:    m.Get("rule.category.name").String(),
			Replacements:    replacements,
		})
	}
	return matches, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
