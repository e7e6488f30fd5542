// Package testutil provides testing utilities for the aircraft database client.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock document response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockDB is a configurable mock of a dump1090/tar1090 web root serving
// db/ shards, the type table, and live data/ documents. Unknown paths
// return 404 like a static file server.
type MockDB struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	gates    map[string]chan struct{}

	requests   map[string]int
	arrivals   []string
	active     int
	maxActive  int
	lastHeader http.Header
}

// NewMockDB creates and starts a new mock server.
func NewMockDB() *MockDB {
	mock := &MockDB{
		handlers: make(map[string]http.HandlerFunc),
		gates:    make(map[string]chan struct{}),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")

		mock.mu.Lock()
		mock.requests[path]++
		mock.arrivals = append(mock.arrivals, path)
		mock.active++
		if mock.active > mock.maxActive {
			mock.maxActive = mock.active
		}
		mock.lastHeader = r.Header.Clone()
		gate := mock.gates[path]
		handler, exists := mock.handlers[path]
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.active--
			mock.mu.Unlock()
		}()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockDB) URL() string {
	return m.server.URL
}

// Close shuts down the mock server, releasing any gated requests first.
func (m *MockDB) Close() {
	m.mu.Lock()
	for path, gate := range m.gates {
		close(gate)
		delete(m.gates, path)
	}
	m.mu.Unlock()
	m.server.Close()
}

// SetHandler sets a custom handler for a path relative to the web root.
func (m *MockDB) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[strings.TrimPrefix(path, "/")] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockDB) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON serves body as a 200 application/json response.
func (m *MockDB) SetJSON(path, body string) {
	m.SetResponse(path, NewJSONResponse(body))
}

// SetShard serves body as the shard document for key.
func (m *MockDB) SetShard(key, body string) {
	m.SetJSON("db/"+key+".json", body)
}

// SetTypeTable serves body as the aggregate type table.
func (m *MockDB) SetTypeTable(body string) {
	m.SetJSON("db/aircraft_types/icao_aircraft_types.json", body)
}

// Gate holds requests for path until Release is called. Requests that
// arrive while gated are still counted as active.
func (m *MockDB) Gate(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = strings.TrimPrefix(path, "/")
	if _, ok := m.gates[path]; !ok {
		m.gates[path] = make(chan struct{})
	}
}

// Release lets all held and future requests for path proceed.
func (m *MockDB) Release(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = strings.TrimPrefix(path, "/")
	if gate, ok := m.gates[path]; ok {
		close(gate)
		delete(m.gates, path)
	}
}

// RequestCount returns the number of requests received for path.
func (m *MockDB) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[strings.TrimPrefix(path, "/")]
}

// TotalRequests returns the number of requests received for all paths.
func (m *MockDB) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.arrivals)
}

// Arrivals returns request paths in arrival order.
func (m *MockDB) Arrivals() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.arrivals))
	copy(out, m.arrivals)
	return out
}

// Active returns the number of requests currently being served.
func (m *MockDB) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// MaxConcurrent returns the highest number of simultaneous requests seen.
func (m *MockDB) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockDB) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// WaitForRequests polls until at least n requests have arrived or timeout
// elapses. It reports whether the count was reached.
func (m *MockDB) WaitForRequests(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.TotalRequests() >= n {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return m.TotalRequests() >= n
}

// NewJSONResponse creates a standard 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal server error",
	}
}
