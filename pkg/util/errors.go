package util

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"google.golang.org/api/googleapi"
)

// keyParam matches an API key carried in a query string.
var keyParam = regexp.MustCompile(`([?&]key=)[^&\s"]+`)

// CleanedUpAPIError renders Google API failures as "<status>: <message>"
// instead of the client library's multi-line dump, and redacts API keys
// that transport errors echo back in URLs.
type CleanedUpAPIError struct {
	Err error
}

func (e CleanedUpAPIError) Error() string {
	if e.Err == nil {
		return ""
	}
	var gerr *googleapi.Error
	if errors.As(e.Err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return fmt.Sprintf("%d: %s", gerr.Code, msg)
	}
	return RedactKey(e.Err.Error())
}

func (e CleanedUpAPIError) Unwrap() error {
	return e.Err
}

// RedactKey hides the value of any key= query parameter in s.
func RedactKey(s string) string {
	return keyParam.ReplaceAllString(s, "${1}REDACTED")
}

// IsNotFound reports whether err is a Google API 404.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
