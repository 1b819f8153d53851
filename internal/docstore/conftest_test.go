package docstore

import (
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// recordedRequest captures one request the gateway sent.
type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeTransport routes gateway requests to canned JSON responses.
type fakeTransport struct {
	handler  func(req recordedRequest) (status int, body string)
	requests []recordedRequest
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = string(data)
	}
	rec := recordedRequest{Method: req.Method, Path: req.URL.Path, Body: body}
	f.requests = append(f.requests, rec)

	status, respBody := f.handler(rec)
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	// the v8 client validates this product header on every response
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(respBody)),
		Request:    req,
	}, nil
}

func newTestGateway(t interface{ Fatalf(string, ...any) }, ft *fakeTransport) *Gateway {
	g, err := New(Config{
		Addresses: []string{"http://docstore.test"},
		Transport: ft,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func emptyHits() string {
	return `{"hits":{"hits":[]}}`
}

func oneHit(id string) string {
	return `{"hits":{"hits":[{"_id":"` + id + `","_source":{"trial_id":"t1"}}]}}`
}
