package drive

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

const (
	untitledFile = "untitled"
	untitledPage = "untitled_page"

	defaultMimeType = "application/octet-stream"
)

var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"txt":  "text/plain",
	"html": "text/html",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"zip":  "application/zip",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// directExtensions are the suffixes saved byte-for-byte instead of as a page.
var directExtensions = []string{
	".pdf", ".png", ".jpg", ".jpeg", ".txt", ".gif", ".svg", ".mp3", ".mp4",
	".zip", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
}

// lastSegment matches a path segment followed by a query, fragment or the end.
var lastSegment = regexp.MustCompile(`([^/\\?#]+)(?:[?#]|$)`)

var titleReplacer = strings.NewReplacer("/", "_", `\`, "_", ":", "_")

// FilenameFromURL returns the last path segment of rawURL, or "untitled".
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if m := lastSegment.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
		return untitledFile
	}

	segments := strings.Split(u.Path, "/")
	if name := segments[len(segments)-1]; name != "" {
		return name
	}
	return untitledFile
}

// MimeTypeFromFilename looks the extension of name up in a fixed table.
func MimeTypeFromFilename(name string) string {
	ext := strings.ToLower(name[strings.LastIndex(name, ".")+1:])
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return defaultMimeType
}

func IsDirectFile(name string) bool {
	lower := strings.ToLower(name)
	return lo.SomeBy(directExtensions, func(ext string) bool {
		return strings.HasSuffix(lower, ext)
	})
}

// ResolveMimeType prefers the server's Content-Type. An empty, generic or
// text/html header falls back to the filename table.
func ResolveMimeType(header, filename string) string {
	if header == "" || header == defaultMimeType || strings.HasPrefix(header, "text/html") {
		return MimeTypeFromFilename(filename)
	}
	return header
}

// SanitizeTitle makes a page title usable as a Drive file name.
func SanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return untitledPage
	}
	return titleReplacer.Replace(title)
}
