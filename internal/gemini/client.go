// Package gemini asks the Gemini generateContent endpoint for practice-project
// suggestions and classifies every way that can go wrong.
package gemini

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

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"
)

// Client issues generateContent requests. It holds no per-call state and is
// safe for concurrent use.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient replaces the default client. The default has no timeout;
// callers bound a request through its context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model id requests are sent to.
func (c *Client) Model() string { return c.model }

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Endpoint returns the generateContent URL for the given credential.
func (c *Client) Endpoint(credential string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(credential))
}

// Suggest sends sourceText, prefixed by PromptTemplate, and returns the
// concatenated text of the first candidate. It returns NoSuggestions when the
// response is well-formed but empty, and a *Error otherwise.
func (c *Client) Suggest(ctx context.Context, credential, sourceText string) (string, error) {
	if credential == "" {
		return "", &Error{Kind: KindMissingCredential}
	}

	body, err := encodeRequest(BuildPrompt(sourceText))
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(credential), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{
			Kind:   KindAPIRequestFailed,
			Status: resp.StatusCode,
			Detail: errorDetail(respBody),
		}
	}

	return extractText(respBody)
}

func encodeRequest(prompt string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	return bytes.TrimRight(buf.Bytes(), "\n"), err
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("suggestion request aborted: %w", ctxErr)
	}
	return &Error{Kind: KindNetworkUnavailable, Err: err}
}

func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return DetailUnparseable
	}
	msg := gjson.GetBytes(body, "error.message")
	if msg.Type != gjson.String || msg.Str == "" {
		return DetailUnparseable
	}
	return msg.Str
}

// extractText walks candidates[0].content.parts. Every structural check
// fails with KindUnexpectedResponseShape, including an empty candidates list;
// only an empty parts list or all-empty texts yield NoSuggestions.
func extractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", shapeError("body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if root.Type == gjson.Null {
		return "", shapeError("body is null")
	}

	candidates := root.Get("candidates")
	if !candidates.IsArray() {
		return "", shapeError("candidates is not a list")
	}
	list := candidates.Array()
	if len(list) == 0 {
		return "", shapeError("candidates is empty")
	}

	first := list[0]
	if !first.IsObject() {
		return "", shapeError("candidates[0] is not an object")
	}
	cnt := first.Get("content")
	if !cnt.IsObject() {
		return "", shapeError("candidates[0].content is not an object")
	}
	parts := cnt.Get("parts")
	if !parts.IsArray() {
		return "", shapeError("candidates[0].content.parts is not a list")
	}

	var sb strings.Builder
	for i, p := range parts.Array() {
		if !p.IsObject() {
			return "", shapeError(fmt.Sprintf("parts[%d] is not an object", i))
		}
		text := p.Get("text")
		if !text.Exists() || text.Type == gjson.Null {
			continue
		}
		sb.WriteString(text.String())
	}

	if sb.Len() == 0 {
		return NoSuggestions, nil
	}
	return sb.String(), nil
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
