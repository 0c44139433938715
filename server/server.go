// Package server implements the fixed HTTP surface spec.md §6 names:
// a health string at "/", a request echo at "/debug*", and the
// influencers.json endpoint that drives the whole on-demand pipeline.
package server

import (
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/teranos/kcore-analytics/dispatcher"
	"github.com/teranos/kcore-analytics/internal/util"
	"github.com/teranos/kcore-analytics/logger"
)

// Server wires the Dispatcher onto the fixed HTTP surface.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	mux        *http.ServeMux
}

// New builds a Server routing onto d.
func New(d *dispatcher.Dispatcher) *Server {
	s := &Server{dispatcher: d, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleHealth)
	s.mux.HandleFunc("/debug/", s.handleDebug)
	s.mux.HandleFunc("/debug", s.handleDebug)
	s.mux.HandleFunc("/influencers.json", s.handleInfluencers)
}

// handleHealth implements spec.md §6's `GET /` → plain-text health string,
// the only bare textual endpoint in the whole surface.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Analytics server is ONLINE"))
}

// handleDebug implements spec.md §6's `GET /debug*` → echoes the request.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	dump, err := httputil.DumpRequest(r, true)
	if err != nil {
		http.Error(w, "failed to dump request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(dump)
}

// influencerResponse is the JSON envelope spec.md §6 describes for
// `GET /influencers.json`.
type influencerResponse struct {
	Influencers interface{} `json:"influencers"`
	Graph       interface{} `json:"graph"`
	Failure     bool        `json:"failure"`
	ErrorCode   *int        `json:"error_code,omitempty"`
	ErrorText   string      `json:"error_text,omitempty"`
}

// handleInfluencers implements spec.md §6's `GET
// /influencers.json?query=<q>`: submits the query to the Dispatcher,
// blocks for its single resolution, and renders the result (or a
// structured failure) as JSON.
func (s *Server) handleInfluencers(w http.ResponseWriter, r *http.Request) {
	rawQuery := r.URL.Query().Get("query")

	waiter, _, err := s.dispatcher.Submit(rawQuery)
	if err != nil {
		writeJSON(w, influencerResponse{Failure: true, ErrorCode: util.Ptr(1), ErrorText: "Empty or invalid query"})
		return
	}

	select {
	case <-r.Context().Done():
		return
	case res := <-waiter:
		if res.Err != nil {
			logger.Logger.Errorw("influencers.json: analysis failed", "error", res.Err)
			writeJSON(w, influencerResponse{Failure: true})
			return
		}
		writeJSON(w, influencerResponse{
			Influencers: res.Analysis.Influencers,
			Graph:       res.Analysis.Subgraph,
			Failure:     false,
		})
	}
}

// ReadHeaderTimeout bounds how long the server waits for request headers.
const ReadHeaderTimeout = 10 * time.Second
