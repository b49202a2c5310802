package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// Response is one scripted HTTP response.
type Response struct {
	Code int
	Body string
	// RetryAfter, when set, is sent as a Retry-After header (seconds).
	RetryAfter string
}

// ScriptedServer serves per-path response queues. Each request pops the next
// response for its "METHOD path" key; when the queue is down to one entry
// that entry repeats, so a task can be scripted as pending, pending, done.
// Unscripted paths return 404.
type ScriptedServer struct {
	Server *httptest.Server

	mu      sync.Mutex
	scripts map[string][]Response
	hits    map[string]int
	headers []http.Header
}

// NewScriptedServer starts the server; callers must Close it.
func NewScriptedServer() *ScriptedServer {
	s := &ScriptedServer{
		scripts: map[string][]Response{},
		hits:    map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close shuts the server down.
func (s *ScriptedServer) Close() { s.Server.Close() }

// URL returns the server's base URL.
func (s *ScriptedServer) URL() string { return s.Server.URL }

// On queues responses for "METHOD path".
func (s *ScriptedServer) On(method, path string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.scripts[key] = append(s.scripts[key], responses...)
}

// Hits returns how many requests "METHOD path" has received.
func (s *ScriptedServer) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

// LastHeader returns the headers of the most recent request, nil if none.
func (s *ScriptedServer) LastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1]
}

func (s *ScriptedServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	key := r.Method + " " + r.URL.Path
	s.hits[key]++
	s.headers = append(s.headers, r.Header.Clone())

	queue := s.scripts[key]
	var resp Response
	switch len(queue) {
	case 0:
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	case 1:
		resp = queue[0]
	default:
		resp = queue[0]
		s.scripts[key] = queue[1:]
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if resp.RetryAfter != "" {
		w.Header().Set("Retry-After", resp.RetryAfter)
	}
	code := resp.Code
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	_, _ = w.Write([]byte(resp.Body))
}
