// Package page turns a job listing (a URL, an HTML file or plain text) into
// the visible text that is sent for suggestions.
package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoText is returned when a page yields no visible text.
var ErrNoText = errors.New("could not retrieve text from the page")

// FetchError reports a non-2xx response while downloading a page.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Page is one captured listing.
type Page struct {
	URL         string
	Title       string
	Text        string
	HTML        string
	ContentType string
}

// maxPageBytes bounds how much of a response or input is read.
const maxPageBytes = 10 << 20

// ErrTooLarge is returned instead of silently truncating oversized input.
var ErrTooLarge = fmt.Errorf("input is larger than %d MiB", maxPageBytes>>20)

// hiddenSelectors never contribute to the rendered text of a document.
const hiddenSelectors = "head, script, style, noscript, template, svg, iframe"

type Extractor struct {
	client *http.Client
}

func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{client: &http.Client{Timeout: timeout}}
}

// NewExtractorWithClient is used by tests and by callers that already own a client.
func NewExtractorWithClient(hc *http.Client) *Extractor {
	return &Extractor{client: hc}
}

// FromURL downloads rawURL and extracts its visible text. Pages without any
// visible text fail with ErrNoText.
func (x *Extractor) FromURL(ctx context.Context, rawURL string) (*Page, error) {
	p, err := x.FetchHTML(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Text) == "" {
		return nil, ErrNoText
	}
	return p, nil
}

// FetchHTML downloads rawURL and returns its markup and title. Unlike
// FromURL it accepts pages whose content is rendered by scripts.
func (x *Extractor) FetchHTML(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	p, err := capture(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	p.URL = rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		p.URL = resp.Request.URL.String()
	}
	return p, nil
}

// FromReader extracts text from a local file or stdin. source is only
// recorded on the returned Page.
func FromReader(r io.Reader, source string) (*Page, error) {
	body, err := readLimited(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	p, err := capture(body, "")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Text) == "" {
		return nil, ErrNoText
	}
	p.URL = source
	return p, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxPageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxPageBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

// capture parses body. HTML yields its title, visible text and markup;
// anything else is kept as text exactly as received.
func capture(body []byte, contentType string) (*Page, error) {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	if !isHTML(contentType, body) {
		return &Page{Text: string(body), ContentType: contentType}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	return &Page{
		Title:       title,
		Text:        VisibleText(doc),
		HTML:        string(body),
		ContentType: contentType,
	}, nil
}

func isHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if strings.HasPrefix(ct, "text/plain") {
		// DetectContentType misses fragments without a leading tag.
		head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 512)])))
		return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
	}
	return false
}

// VisibleText approximates document.body.innerText: hidden elements are
// dropped, block elements break lines, and whitespace is collapsed.
func VisibleText(doc *goquery.Document) string {
	doc.Find(hiddenSelectors).Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, section, article, header, footer, ul, ol, table, dd, dt, pre, blockquote").
		Each(func(_ int, s *goquery.Selection) {
			s.AppendHtml("\n")
		})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return normalize(root.Text())
}

// normalize collapses runs of spaces on each line and squeezes blank lines.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
