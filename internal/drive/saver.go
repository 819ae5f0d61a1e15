// Package drive saves job listings, or files they link to, into Google Drive.
package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/pterm/pterm"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kernel/jobprep/internal/page"
)

const (
	htmlMimeType     = "text/html"
	markdownMimeType = "text/markdown"

	savedFields = "id, name, mimeType, size, webViewLink"
)

// SavedFile describes a file created in Drive.
type SavedFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Size        int64  `json:"size"`
	WebViewLink string `json:"webViewLink,omitempty"`
}

// SaveOptions control how a URL is stored.
type SaveOptions struct {
	// FolderID is the parent folder. Empty means the Drive root.
	FolderID string
	// Markdown stores pages as converted markdown instead of raw HTML.
	Markdown bool
}

type Saver struct {
	files *gdrive.FilesService
	fetch *http.Client
	pages *page.Extractor
}

// NewSaver builds a Saver. opts configure the Drive client, usually
// option.WithTokenSource; fetch downloads the URLs being saved.
func NewSaver(ctx context.Context, fetch *http.Client, opts ...option.ClientOption) (*Saver, error) {
	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}
	if fetch == nil {
		fetch = http.DefaultClient
	}
	return &Saver{
		files: svc.Files,
		fetch: fetch,
		pages: page.NewExtractorWithClient(fetch),
	}, nil
}

// Save uploads rawURL to Drive. URLs naming a direct file are stored as-is;
// anything else is captured as a page.
func (s *Saver) Save(ctx context.Context, rawURL string, in SaveOptions) (*SavedFile, error) {
	name := FilenameFromURL(rawURL)
	if IsDirectFile(name) {
		pterm.Debug.Printf("Detected direct file: %s\n", name)
		return s.saveFile(ctx, rawURL, name, in)
	}
	return s.savePage(ctx, rawURL, in)
}

func (s *Saver) saveFile(ctx context.Context, rawURL, name string, in SaveOptions) (*SavedFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	resp, err := s.fetch.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch file: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	mimeType := ResolveMimeType(resp.Header.Get("Content-Type"), name)
	return s.upload(ctx, name, mimeType, body, in.FolderID)
}

func (s *Saver) savePage(ctx context.Context, rawURL string, in SaveOptions) (*SavedFile, error) {
	p, err := s.pages.FetchHTML(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if p.HTML == "" {
		// Plain-text responses have no title or markup to keep.
		return s.upload(ctx, SanitizeTitle(FilenameFromURL(rawURL))+".txt", "text/plain", []byte(p.Text), in.FolderID)
	}

	title := SanitizeTitle(p.Title)
	if !in.Markdown {
		return s.upload(ctx, title+".html", htmlMimeType, []byte(p.HTML), in.FolderID)
	}

	converted, err := md.NewConverter(hostOf(p.URL), true, nil).ConvertString(p.HTML)
	if err != nil {
		return nil, fmt.Errorf("failed to convert page to markdown: %w", err)
	}
	return s.upload(ctx, title+".md", markdownMimeType, []byte(converted), in.FolderID)
}

func (s *Saver) upload(ctx context.Context, name, mimeType string, body []byte, folderID string) (*SavedFile, error) {
	pterm.Debug.Printf("Uploading %s (%.2f KB, %s)\n", name, float64(len(body))/1024, mimeType)

	meta := &gdrive.File{Name: name, MimeType: mimeType}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	f, err := s.files.Create(meta).
		Media(bytes.NewReader(body), googleapi.ContentType(mimeType)).
		Fields(savedFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	return &SavedFile{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		Size:        f.Size,
		WebViewLink: f.WebViewLink,
	}, nil
}

// hostOf returns the host of rawURL; relative links in markdown are made
// absolute against it.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
