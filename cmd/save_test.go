package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/kernel/jobprep/internal/auth"
	"github.com/kernel/jobprep/internal/drive"
)

func saveCmdWith(sessions SessionService, saver DriveSaver) SaveCmd {
	return SaveCmd{
		sessions: sessions,
		newSaver: func(ctx context.Context, sess *auth.Session) (DriveSaver, error) {
			return saver, nil
		},
	}
}

func signedIn() *FakeSessionService {
	return &FakeSessionService{
		ResumeFunc: func(ctx context.Context) (*auth.Session, error) { return signedInSession("me@example.com"), nil },
	}
}

func TestSave_RequiresSession(t *testing.T) {
	for _, resumeErr := range []error{auth.ErrNotSignedIn, fmt.Errorf("%w: refresh failed", auth.ErrSessionExpired)} {
		fake := &FakeSessionService{
			ResumeFunc: func(ctx context.Context) (*auth.Session, error) { return nil, resumeErr },
		}
		saver := &FakeDriveSaver{
			SaveFunc: func(ctx context.Context, rawURL string, in drive.SaveOptions) (*drive.SavedFile, error) {
				t.Fatal("must not save without a session")
				return nil, nil
			},
		}

		err := saveCmdWith(fake, saver).Run(context.Background(), SaveInput{URL: "https://example.com/job"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "please sign in to Google Drive first")
	}
}

func TestSave_PassesOptionsAndPrintsResult(t *testing.T) {
	setupStdoutCapture(t)

	var gotURL string
	var gotOpts drive.SaveOptions
	saver := &FakeDriveSaver{
		SaveFunc: func(ctx context.Context, rawURL string, in drive.SaveOptions) (*drive.SavedFile, error) {
			gotURL, gotOpts = rawURL, in
			return &drive.SavedFile{
				ID:          "1AbC",
				Name:        "Senior Go Engineer.md",
				MimeType:    "text/markdown",
				Size:        2048,
				WebViewLink: "https://drive.google.com/file/d/1AbC/view",
			}, nil
		},
	}

	err := saveCmdWith(signedIn(), saver).Run(context.Background(), SaveInput{
		URL:      "https://example.com/jobs/1",
		FolderID: "folder-1",
		Markdown: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/jobs/1", gotURL)
	assert.Equal(t, drive.SaveOptions{FolderID: "folder-1", Markdown: true}, gotOpts)

	out := outBuf.String()
	assert.Contains(t, out, `Successfully saved "Senior Go Engineer.md" to Google Drive!`)
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "https://drive.google.com/file/d/1AbC/view")
}

func TestSave_JSONOutput(t *testing.T) {
	setupStdoutCapture(t)
	read := captureStdout(t)

	require.NoError(t, saveCmdWith(signedIn(), &FakeDriveSaver{}).Run(context.Background(), SaveInput{
		URL:    "https://example.com",
		Output: "json",
	}))

	var got drive.SavedFile
	require.NoError(t, json.Unmarshal([]byte(read()), &got))
	assert.Equal(t, "file-1", got.ID)
	assert.Equal(t, "untitled_page.html", got.Name)
}

func TestSave_UploadErrorIsCleanedUp(t *testing.T) {
	setupStdoutCapture(t)

	saver := &FakeDriveSaver{
		SaveFunc: func(ctx context.Context, rawURL string, in drive.SaveOptions) (*drive.SavedFile, error) {
			return nil, fmt.Errorf("upload failed: %w", &googleapi.Error{Code: http.StatusForbidden, Message: "Drive storage quota exceeded"})
		},
	}

	err := saveCmdWith(signedIn(), saver).Run(context.Background(), SaveInput{URL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, "403: Drive storage quota exceeded", err.Error())

	var gerr *googleapi.Error
	assert.True(t, errors.As(err, &gerr))
}

func TestSave_MissingFolder(t *testing.T) {
	setupStdoutCapture(t)

	saver := &FakeDriveSaver{
		SaveFunc: func(ctx context.Context, rawURL string, in drive.SaveOptions) (*drive.SavedFile, error) {
			return nil, fmt.Errorf("upload failed: %w", &googleapi.Error{Code: http.StatusNotFound, Message: "File not found: nope."})
		},
	}

	err := saveCmdWith(signedIn(), saver).Run(context.Background(), SaveInput{URL: "https://example.com", FolderID: "nope"})
	require.Error(t, err)
	assert.Equal(t, `drive folder "nope" not found or not shared with you (404: File not found: nope.)`, err.Error())

	var gerr *googleapi.Error
	assert.True(t, errors.As(err, &gerr))
}

func TestSave_NotFoundWithoutFolderIsPlainAPIError(t *testing.T) {
	setupStdoutCapture(t)

	saver := &FakeDriveSaver{
		SaveFunc: func(ctx context.Context, rawURL string, in drive.SaveOptions) (*drive.SavedFile, error) {
			return nil, &googleapi.Error{Code: http.StatusNotFound}
		},
	}

	err := saveCmdWith(signedIn(), saver).Run(context.Background(), SaveInput{URL: "https://example.com"})
	assert.EqualError(t, err, "404: Not Found")
}

func TestSave_UnsupportedOutput(t *testing.T) {
	err := saveCmdWith(signedIn(), &FakeDriveSaver{}).Run(context.Background(), SaveInput{URL: "u", Output: "table"})
	assert.EqualError(t, err, "unsupported --output value: use 'json'")
}
