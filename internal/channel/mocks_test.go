package channel

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/yourneighborhoodchef/skuwatch/internal/model"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

type capturedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

func (c capturedRequest) JSON() map[string]any {
	var out map[string]any
	_ = json.Unmarshal(c.Body, &out)
	return out
}

type fakeDoer struct {
	mu       sync.Mutex
	requests []capturedRequest
	respond  func(req *http.Request) (*http.Response, error)
}

func newFakeDoer(code int, body string) *fakeDoer {
	return &fakeDoer{respond: func(*http.Request) (*http.Response, error) {
		return response(code, body), nil
	}}
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	captured := capturedRequest{Method: req.Method, URL: req.URL.String(), Header: req.Header.Clone()}
	if req.Body != nil {
		captured.Body, _ = io.ReadAll(req.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, captured)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeDoer) all() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func (f *fakeDoer) last() capturedRequest {
	reqs := f.all()
	return reqs[len(reqs)-1]
}

func response(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

type fakeRunner struct {
	mu      sync.Mutex
	runs    [][]string
	missing map[string]bool
	err     error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, append([]string{name}, args...))
	return f.err
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", &lookPathError{name}
	}
	return "/usr/bin/" + name, nil
}

type lookPathError struct{ name string }

func (e *lookPathError) Error() string { return e.name + ": executable file not found" }

var fixedNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func testDeps(doer *fakeDoer) Deps {
	return Deps{
		HTTP:   doer,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Out:    io.Discard,
		Runner: &fakeRunner{},
		Now:    func() time.Time { return fixedNow },
	}
}

func testAlert(inStock bool) notify.Alert {
	return notify.NewAlert("NVIDIA GeForce RTX 5090", model.StockObservation{
		SKU:        "PRO5090FE",
		IsActive:   inStock,
		Price:      "1939.00",
		ProductURL: "https://shop.example.test/buy/5090",
	}, fixedNow)
}

func testReport() notify.StatusReport {
	stats := model.RunStats{
		SuccessfulRequests: 10,
		FailedRequests:     1,
		LastCheckTime:      fixedNow.Add(-time.Minute),
		LastCheckSuccess:   true,
		StartTime:          fixedNow.Add(-2 * time.Hour),
	}
	return notify.NewStatusReport(stats, []string{"NVIDIA GeForce RTX 5090"}, fixedNow)
}
