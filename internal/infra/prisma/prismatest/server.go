// Package prismatest serves a fake alert export API for tests.
package prismatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

const authHeader = "x-redlock-auth"

// Server is an in-process fake of the remote API. Configure the exported
// fields before the first request.
type Server struct {
	*httptest.Server

	Username string
	Password string
	Policies []alerts.PolicyRecord
	Export   []byte
	JobID    string
	// ReadyAfter is the number of status checks answered PENDING before the
	// job is ready. Negative means never.
	ReadyAfter int
	// Fail forces a status code for a route name: login, extend, policies,
	// submit, status, download.
	Fail map[string]int

	mu      sync.Mutex
	tokens  map[string]bool
	issued  int
	checks  int
	hits    map[string]int
	lastReq map[string]json.RawMessage
}

// New starts a server that accepts user/pass and exports nothing until
// configured.
func New() *Server {
	s := &Server{
		Username: "user",
		Password: "pass",
		JobID:    "job-1",
		Fail:     map[string]int{},
		tokens:   map[string]bool{},
		hits:     map[string]int{},
		lastReq:  map[string]json.RawMessage{},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", s.handle("login", false, s.handleLogin))
	r.Get("/auth_token/extend", s.handle("extend", true, s.handleExtend))
	r.Get("/v2/policy", s.handle("policies", true, s.handlePolicies))
	r.Post("/alert/csv", s.handle("submit", true, s.handleSubmit))
	r.Get("/alert/csv/{id}/status", s.handle("status", true, s.handleStatus))
	r.Get("/alert/csv/{id}/download", s.handle("download", true, s.handleDownload))
	return r
}

// Hits returns how many times a route was called.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// LastBody returns the JSON body of the last request to a route.
func (s *Server) LastBody(route string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq[route]
}

// IssuedTokens is the number of tokens handed out by login and extend.
func (s *Server) IssuedTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func (s *Server) handle(route string, auth bool, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[route]++
		code := s.Fail[route]
		valid := s.tokens[r.Header.Get(authHeader)]
		if r.Body != nil && r.Method == http.MethodPost {
			var raw json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
				s.lastReq[route] = raw
			}
		}
		s.mu.Unlock()

		if code != 0 {
			http.Error(w, fmt.Sprintf("forced %s failure", route), code)
			return
		}
		if auth && !valid {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Server) issue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := fmt.Sprintf("token-%d", s.issued)
	s.issued++
	s.tokens[tok] = true
	return tok
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.Unmarshal(s.LastBody("login"), &body)
	if body.Username != s.Username || body.Password != s.Password {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]string{"token": s.issue()})
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"token": s.issue()})
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	policies := s.Policies
	if policies == nil {
		policies = []alerts.PolicyRecord{}
	}
	writeJSON(w, policies)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"id": s.JobID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "id") != s.JobID {
		http.Error(w, "no such job", http.StatusNotFound)
		return
	}
	s.mu.Lock()
	s.checks++
	ready := s.ReadyAfter >= 0 && s.checks > s.ReadyAfter
	s.mu.Unlock()

	status := "PENDING"
	if ready {
		status = alerts.RemoteReadyStatus
	}
	writeJSON(w, map[string]string{"id": s.JobID, "status": status})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "id") != s.JobID {
		http.Error(w, "no such job", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	_, _ = w.Write(s.Export)
}
