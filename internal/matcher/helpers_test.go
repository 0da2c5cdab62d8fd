package matcher

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/nao1215/brokerscan/internal/fetch"
	"github.com/nao1215/brokerscan/internal/model"
)

var errConnRefused = errors.New("connection refused")

// fakeGetter serves canned pages keyed by exact URL and records calls.
// Unknown URLs fail like an unreachable host.
type fakeGetter struct {
	mu    sync.Mutex
	pages map[string]fetch.Response
	calls []string
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{pages: make(map[string]fetch.Response)}
}

func (f *fakeGetter) page(url string, status int, body string) *fakeGetter {
	f.pages[url] = fetch.Response{Outcome: fetch.Ok, URL: url, StatusCode: status, Body: body}
	return f
}

func (f *fakeGetter) Get(_ context.Context, url string, opts fetch.Options) (fetch.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	resp, ok := f.pages[url]
	f.mu.Unlock()

	if ok {
		return resp, nil
	}
	failed := fetch.Response{Outcome: fetch.Failed, URL: url, Reason: errConnRefused}
	if opts.AllowFailure {
		return failed, nil
	}
	return failed, errors.Join(fetch.ErrFetchFailed, errConnRefused)
}

func (f *fakeGetter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func mustProfile(t *testing.T, name string, opts ...model.ProfileOption) *model.ClientProfile {
	t.Helper()
	p, err := model.NewClientProfile(name, opts...)
	if err != nil {
		t.Fatalf("NewClientProfile(%q): %v", name, err)
	}
	return p
}

func janeDoe(t *testing.T) *model.ClientProfile {
	t.Helper()
	return mustProfile(t, "Jane Doe", model.WithCity("Austin"), model.WithState("TX"))
}

func testDeps(g fetch.Getter) Deps {
	return Deps{Fetcher: g, Delay: fetch.NoDelay()}
}

const statusOK = http.StatusOK
