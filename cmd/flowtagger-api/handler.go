package main

import (
	"FlowTagger/internal/engine/classifier"
	"FlowTagger/internal/engine/layout"
	"FlowTagger/internal/engine/manager"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/internal/query"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// maxClassifyBody caps the size of a classify request.
const maxClassifyBody = 64 << 20

type pairCount struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Count    uint64 `json:"count"`
}

// ClassifyResponse is the JSON body returned by POST /api/v1/classify.
type ClassifyResponse struct {
	RunID              string          `json:"run_id"`
	TagCounts          model.TagCounts `json:"tag_counts"`
	PortProtocolCounts []pairCount     `json:"port_protocol_counts"`
	Stats              model.Stats     `json:"stats"`
	Persisted          bool            `json:"persisted"`
}

// LookupResponse describes the loaded lookup table.
type LookupResponse struct {
	Entries int    `json:"entries"`
	Ports   int    `json:"ports"`
	Layout  string `json:"layout"`
}

type apiServer struct {
	manager  *manager.Manager
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	querier  query.Querier
	log      logrus.FieldLogger
}

func newHTTPHandler(s *apiServer) http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	api.HandleFunc("/lookup", s.handleLookup).Methods(http.MethodGet)
	api.HandleFunc("/history/tags", s.handleTagHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/pairs", s.handlePairHistory).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

// handleClassify classifies the request body. ?format= selects a custom layout and
// ?persist=true also sends the report to the configured writers.
func (s *apiServer) handleClassify(w http.ResponseWriter, r *http.Request) {
	engine := s.manager.Engine()
	if format := r.URL.Query().Get("format"); format != "" {
		l, err := layout.Resolve(format)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		engine = classifier.New(s.manager.Table(), l,
			classifier.WithLogger(s.log), classifier.WithMetrics(s.metrics))
	}

	res, err := engine.Classify(http.MaxBytesReader(w, r.Body, maxClassifyBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report := res.Report("api")
	resp := ClassifyResponse{
		RunID:              report.RunID,
		TagCounts:          report.TagCounts,
		PortProtocolCounts: flattenPairs(report.PortProtocolCounts),
		Stats:              report.Stats,
	}
	if persist, _ := strconv.ParseBool(r.URL.Query().Get("persist")); persist {
		if err := s.manager.WriteReport(report); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		resp.Persisted = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	table := s.manager.Table()
	writeJSON(w, http.StatusOK, LookupResponse{
		Entries: table.Len(),
		Ports:   table.Ports(),
		Layout:  s.manager.Engine().Layout().String(),
	})
}

func (s *apiServer) handleTagHistory(w http.ResponseWriter, r *http.Request) {
	window, ok := s.historyWindow(w, r)
	if !ok {
		return
	}
	totals, err := s.querier.TagTotals(r.Context(), window)
	if err != nil {
		s.log.WithError(err).Error("Tag history query failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *apiServer) handlePairHistory(w http.ResponseWriter, r *http.Request) {
	window, ok := s.historyWindow(w, r)
	if !ok {
		return
	}
	totals, err := s.querier.PortProtocolTotals(r.Context(), window)
	if err != nil {
		s.log.WithError(err).Error("Port/protocol history query failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// historyWindow parses since, until, source and limit. It writes the error response itself.
func (s *apiServer) historyWindow(w http.ResponseWriter, r *http.Request) (query.Window, bool) {
	if s.querier == nil {
		http.Error(w, "no enabled clickhouse writer is configured", http.StatusServiceUnavailable)
		return query.Window{}, false
	}

	q := r.URL.Query()
	window := query.Window{Source: q.Get("source")}
	for name, dst := range map[string]*time.Time{"since": &window.Since, "until": &window.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				http.Error(w, "invalid "+name+": "+err.Error(), http.StatusBadRequest)
				return query.Window{}, false
			}
			*dst = t
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return query.Window{}, false
		}
		window.Limit = limit
	}
	return window, true
}

func flattenPairs(counts model.PortProtocolCounts) []pairCount {
	pairs := make([]pairCount, 0, counts.Pairs())
	for port, byProto := range counts {
		for proto, n := range byProto {
			pairs = append(pairs, pairCount{Port: port, Protocol: proto, Count: n})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Port != pairs[j].Port {
			return pairs[i].Port < pairs[j].Port
		}
		return pairs[i].Protocol < pairs[j].Protocol
	})
	return pairs
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
