package page

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Senior Go Engineer</title>
  <style>body { color: red; }</style>
  <script>var tracking = "do not read";</script>
</head>
<body>
  <h1>Senior   Go Engineer</h1>
  <p>We build <b>distributed</b> systems.</p>
  <ul><li>Go</li><li>Kubernetes</li></ul>
  <noscript>Enable JavaScript</noscript>
  <div>Remote<br>Full time</div>
</body>
</html>`

func TestFromURL_ExtractsVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, listingHTML)
	}))
	defer srv.Close()

	p, err := NewExtractor(5*time.Second).FromURL(context.Background(), srv.URL+"/jobs/1")
	require.NoError(t, err)

	assert.Equal(t, "Senior Go Engineer", p.Title)
	assert.Equal(t, srv.URL+"/jobs/1", p.URL)
	assert.Contains(t, p.Text, "Senior Go Engineer")
	assert.Contains(t, p.Text, "We build distributed systems.")
	assert.Contains(t, p.Text, "Go\nKubernetes")
	assert.Contains(t, p.Text, "Remote\nFull time")
	assert.NotContains(t, p.Text, "tracking")
	assert.NotContains(t, p.Text, "color: red")
	assert.NotContains(t, p.Text, "Enable JavaScript")
	assert.Equal(t, listingHTML, p.HTML)
}

func TestFromURL_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewExtractor(5*time.Second).FromURL(context.Background(), srv.URL)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Contains(t, err.Error(), "404 Not Found")
}

func TestFromURL_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body><script>x()</script></body></html>")
	}))
	defer srv.Close()

	_, err := NewExtractor(5*time.Second).FromURL(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestFromURL_InvalidURL(t *testing.T) {
	_, err := NewExtractor(time.Second).FromURL(context.Background(), "://nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestFromReader_PlainTextIsKeptVerbatim(t *testing.T) {
	in := "Requirements:\n    - Go\n\n\n    - SQL  \n"
	p, err := FromReader(strings.NewReader(in), "stdin")
	require.NoError(t, err)

	assert.Equal(t, in, p.Text)
	assert.Equal(t, "stdin", p.URL)
	assert.Empty(t, p.HTML)
}

func TestFromReader_TooLarge(t *testing.T) {
	in := strings.Repeat("a", maxPageBytes+100)
	_, err := FromReader(strings.NewReader(in), "stdin")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFromReader_AtLimit(t *testing.T) {
	in := strings.Repeat("a", maxPageBytes)
	p, err := FromReader(strings.NewReader(in), "stdin")
	require.NoError(t, err)
	assert.Len(t, p.Text, maxPageBytes)
}

func TestFromURL_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body><p>")
		_, _ = io.WriteString(w, strings.Repeat("x", maxPageBytes))
		_, _ = io.WriteString(w, "</p></body></html>")
	}))
	defer srv.Close()

	_, err := NewExtractor(5*time.Second).FromURL(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchHTML_ScriptRenderedPage(t *testing.T) {
	const shell = `<html><head><title>Careers | Acme</title><script src="/app.js"></script></head><body><div id="root"></div></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, shell)
	}))
	defer srv.Close()

	x := NewExtractor(5 * time.Second)

	_, err := x.FromURL(context.Background(), srv.URL+"/jobs/42")
	assert.ErrorIs(t, err, ErrNoText)

	p, err := x.FetchHTML(context.Background(), srv.URL+"/jobs/42")
	require.NoError(t, err)
	assert.Equal(t, "Careers | Acme", p.Title)
	assert.Equal(t, shell, p.HTML)
	assert.Empty(t, p.Text)
	assert.Equal(t, srv.URL+"/jobs/42", p.URL)
}

func TestFromReader_HTMLFile(t *testing.T) {
	p, err := FromReader(strings.NewReader(listingHTML), "listing.html")
	require.NoError(t, err)

	assert.Equal(t, "Senior Go Engineer", p.Title)
	assert.Contains(t, p.Text, "Kubernetes")
	assert.NotContains(t, p.Text, "tracking")
}

func TestFromReader_Empty(t *testing.T) {
	_, err := FromReader(strings.NewReader(" \n\t "), "stdin")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"a  b", "a b"},
		{"\n\na\n\n\n\nb\n\n", "a\n\nb"},
		{"\tx\t y ", "x y"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize(tt.in))
		})
	}
}
