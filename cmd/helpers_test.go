package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"

	"github.com/kernel/jobprep/internal/auth"
	"github.com/kernel/jobprep/internal/drive"
	"github.com/kernel/jobprep/internal/page"
)

// outBuf collects pterm output for the current test.
var outBuf bytes.Buffer

func setupStdoutCapture(t *testing.T) {
	t.Helper()
	outBuf.Reset()
	pterm.SetDefaultOutput(&outBuf)
	pterm.DisableStyling()
	// The prefix printers copy the default writer at package init, so
	// SetDefaultOutput alone does not redirect them.
	printers := []*pterm.PrefixPrinter{&pterm.Info, &pterm.Success, &pterm.Warning, &pterm.Error, &pterm.Debug}
	writers := make([]io.Writer, len(printers))
	for i, p := range printers {
		writers[i] = p.Writer
		p.Writer = &outBuf
	}
	spinnerWriter := pterm.DefaultSpinner.Writer
	pterm.DefaultSpinner.Writer = &outBuf
	t.Cleanup(func() {
		for i, p := range printers {
			p.Writer = writers[i]
		}
		pterm.DefaultSpinner.Writer = spinnerWriter
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableStyling()
	})
}

// captureStdout redirects os.Stdout, where JSON and model output are printed.
// The returned func restores it and returns what was written.
func captureStdout(t *testing.T) func() string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(&buf, r)
		close(done)
	}()

	var once sync.Once
	restore := func() {
		once.Do(func() {
			w.Close()
			os.Stdout = oldStdout
			<-done
		})
	}
	t.Cleanup(restore)
	return func() string {
		restore()
		return buf.String()
	}
}

type FakeSuggester struct {
	SuggestFunc func(ctx context.Context, credential, sourceText string) (string, error)
	calls       int
}

func (f *FakeSuggester) Suggest(ctx context.Context, credential, sourceText string) (string, error) {
	f.calls++
	if f.SuggestFunc != nil {
		return f.SuggestFunc(ctx, credential, sourceText)
	}
	return "Project Name: Default", nil
}

type FakePageFetcher struct {
	FromURLFunc func(ctx context.Context, rawURL string) (*page.Page, error)
}

func (f *FakePageFetcher) FromURL(ctx context.Context, rawURL string) (*page.Page, error) {
	if f.FromURLFunc != nil {
		return f.FromURLFunc(ctx, rawURL)
	}
	return &page.Page{URL: rawURL, Text: "listing text"}, nil
}

// FakeStore is an in-memory auth.Store. The Func fields override it.
type FakeStore struct {
	Values     map[string]string
	GetFunc    func(key string) (string, error)
	SetFunc    func(key, value string) error
	DeleteFunc func(key string) error
}

func (f *FakeStore) Get(key string) (string, error) {
	if f.GetFunc != nil {
		return f.GetFunc(key)
	}
	v, ok := f.Values[key]
	if !ok {
		return "", auth.ErrNotFound
	}
	return v, nil
}

func (f *FakeStore) Set(key, value string) error {
	if f.SetFunc != nil {
		return f.SetFunc(key, value)
	}
	if f.Values == nil {
		f.Values = map[string]string{}
	}
	f.Values[key] = value
	return nil
}

func (f *FakeStore) Delete(key string) error {
	if f.DeleteFunc != nil {
		return f.DeleteFunc(key)
	}
	delete(f.Values, key)
	return nil
}

type FakeSessionService struct {
	SignInFunc  func(ctx context.Context, in auth.SignInOptions) (*auth.Session, error)
	ResumeFunc  func(ctx context.Context) (*auth.Session, error)
	SignOutFunc func(ctx context.Context, sess *auth.Session) error
	ForgetFunc  func() error
}

func (f *FakeSessionService) SignIn(ctx context.Context, in auth.SignInOptions) (*auth.Session, error) {
	if f.SignInFunc != nil {
		return f.SignInFunc(ctx, in)
	}
	return nil, auth.ErrCancelled
}

func (f *FakeSessionService) Resume(ctx context.Context) (*auth.Session, error) {
	if f.ResumeFunc != nil {
		return f.ResumeFunc(ctx)
	}
	return nil, auth.ErrNotSignedIn
}

func (f *FakeSessionService) SignOut(ctx context.Context, sess *auth.Session) error {
	if f.SignOutFunc != nil {
		return f.SignOutFunc(ctx, sess)
	}
	return nil
}

func (f *FakeSessionService) Forget() error {
	if f.ForgetFunc != nil {
		return f.ForgetFunc()
	}
	return nil
}

type FakeDriveSaver struct {
	SaveFunc func(ctx context.Context, rawURL string, in drive.SaveOptions) (*drive.SavedFile, error)
}

func (f *FakeDriveSaver) Save(ctx context.Context, rawURL string, in drive.SaveOptions) (*drive.SavedFile, error) {
	if f.SaveFunc != nil {
		return f.SaveFunc(ctx, rawURL, in)
	}
	return &drive.SavedFile{ID: "file-1", Name: "untitled_page.html", MimeType: "text/html"}, nil
}
