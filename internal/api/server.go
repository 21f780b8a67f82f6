package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mdevries/open-index-search/internal/engine"
	"github.com/mdevries/open-index-search/internal/facade"
)

// ReadyChecker reports whether background loading has finished
type ReadyChecker interface {
	Ready() bool
}

// Server exposes every facade operation over HTTP
type Server struct {
	facades map[string]facade.Facade
	ready   ReadyChecker
}

// NewServer creates an API server over the given facade registry.
// ready may be nil when no background seeding is configured.
func NewServer(facades map[string]facade.Facade, ready ReadyChecker) *Server {
	return &Server{facades: facades, ready: ready}
}

// Router sets up the API routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/facades", s.handleListFacades)
	r.Get("/facades/{facade}/schema", s.handleSchema)
	r.Get("/facades/{facade}/count", s.handleCount)
	r.Get("/facades/{facade}/records", s.handleAll)
	r.Get("/facades/{facade}/records/{id}", s.handleByID)
	r.Post("/facades/{facade}/records", s.handleAdd)
	r.Put("/facades/{facade}/records", s.handleUpdate)
	r.Delete("/facades/{facade}/records/{id}", s.handleRemove)
	r.Delete("/facades/{facade}/records", s.handleClear)
	r.Post("/facades/{facade}/search", s.handleSearch)

	return r
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (facade.Facade, bool) {
	name := chi.URLParam(r, "facade")
	f, ok := s.facades[name]
	if !ok {
		http.Error(w, "facade not found", http.StatusNotFound)
		return nil, false
	}
	return f, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready.Ready() {
		response(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "seeding",
		})
		return
	}
	response(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}

func (s *Server) handleListFacades(w http.ResponseWriter, r *http.Request) {
	type facadeInfo struct {
		Name          string `json:"name"`
		Size          int    `json:"size"`
		SupportsClear bool   `json:"supportsClear"`
	}

	infos := make([]facadeInfo, 0, len(s.facades))
	for name, f := range s.facades {
		size, err := f.Size(r.Context())
		if err != nil {
			log.Printf("Failed to size facade %s: %v", name, err)
			http.Error(w, "failed to list facades", http.StatusInternalServerError)
			return
		}
		infos = append(infos, facadeInfo{Name: name, Size: size, SupportsClear: f.SupportsClear()})
	}

	response(w, http.StatusOK, map[string]interface{}{
		"facades": infos,
		"total":   len(infos),
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	schema := f.Schema()
	response(w, http.StatusOK, map[string]interface{}{
		"name":        schema.Name,
		"fields":      schema.Fields,
		"defaultSort": schema.DefaultSort,
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	size, err := f.Size(r.Context())
	if err != nil {
		log.Printf("Count error: %v", err)
		http.Error(w, "count failed", http.StatusInternalServerError)
		return
	}

	response(w, http.StatusOK, map[string]interface{}{"count": size})
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	start, rows, err := parsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hits, err := f.All(r.Context(), start, rows)
	if err != nil {
		if errors.Is(err, facade.ErrInvalidPagination) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("List error: %v", err)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}

	response(w, http.StatusOK, hits)
}

func (s *Server) handleByID(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	rec, err := f.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("Lookup error: %v", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}

	response(w, http.StatusOK, rec)
}

type recordsRequest struct {
	Records []*facade.MapRecord `json:"records"`
}

func decodeRecords(w http.ResponseWriter, r *http.Request) ([]facade.Record, bool) {
	var req recordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return nil, false
	}
	if len(req.Records) == 0 {
		http.Error(w, "no records in payload", http.StatusBadRequest)
		return nil, false
	}

	recs := make([]facade.Record, len(req.Records))
	for i, rec := range req.Records {
		if rec.Fields == nil {
			rec.Fields = make(map[string]interface{})
		}
		recs[i] = rec
	}
	return recs, true
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	recs, ok := decodeRecords(w, r)
	if !ok {
		return
	}

	if err := f.Add(r.Context(), recs...); err != nil {
		var exists *facade.AlreadyExistsError
		if errors.As(err, &exists) {
			response(w, http.StatusConflict, map[string]interface{}{
				"error": "records already exist",
				"ids":   exists.IDs,
			})
			return
		}
		log.Printf("Add error: %v", err)
		http.Error(w, "add failed", http.StatusInternalServerError)
		return
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.UniqueID()
	}

	response(w, http.StatusCreated, map[string]interface{}{"ids": ids})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	recs, ok := decodeRecords(w, r)
	if !ok {
		return
	}

	if err := f.Update(r.Context(), recs...); err != nil {
		log.Printf("Update error: %v", err)
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.UniqueID()
	}

	response(w, http.StatusOK, map[string]interface{}{"ids": ids})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if err := f.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		log.Printf("Remove error: %v", err)
		http.Error(w, "remove failed", http.StatusInternalServerError)
		return
	}

	response(w, http.StatusOK, map[string]interface{}{"status": "removed"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if err := f.Clear(r.Context()); err != nil {
		if errors.Is(err, facade.ErrClearUnsupported) {
			http.Error(w, "clear is not supported by this facade", http.StatusMethodNotAllowed)
			return
		}
		log.Printf("Clear error: %v", err)
		http.Error(w, "clear failed", http.StatusInternalServerError)
		return
	}

	response(w, http.StatusOK, map[string]interface{}{"status": "cleared"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var searchReq struct {
		Query map[string]interface{} `json:"query"`
		Start int                    `json:"start"`
		Rows  *int                   `json:"rows"`
		Sort  []engine.SortField     `json:"sort"`
	}
	if err := json.NewDecoder(r.Body).Decode(&searchReq); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	rows := facade.AllRows
	if searchReq.Rows != nil {
		rows = *searchReq.Rows
	}

	hits, err := f.Search(r.Context(), searchReq.Query, searchReq.Start, rows, searchReq.Sort...)
	if err != nil {
		if errors.Is(err, facade.ErrInvalidPagination) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Search error: %v", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	response(w, http.StatusOK, hits)
}

// parsePage reads start/rows query parameters; rows defaults to all
func parsePage(r *http.Request) (start, rows int, err error) {
	start, rows = 0, facade.AllRows

	if v := r.URL.Query().Get("start"); v != "" {
		start, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("invalid start parameter")
		}
	}
	if v := r.URL.Query().Get("rows"); v != "" {
		rows, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("invalid rows parameter")
		}
	}
	return start, rows, nil
}

func response(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
