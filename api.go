package pricewatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// API serves the monitor's HTTP surface: tracked-product management,
// history/stats reads, and manual cycle triggering.
type API struct {
	monitor *Monitor
}

// NewAPI wraps a Monitor for HTTP access.
func NewAPI(m *Monitor) *API {
	return &API{monitor: m}
}

// Handler builds the chi router with all API routes mounted under /api.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/results/latest", a.handleLatestResults)
		r.Post("/cycle", a.handleRunCycle)

		r.Get("/products", a.handleListProducts)
		r.Post("/products", a.handleAddProduct)
		r.Delete("/products/{id}", a.handleRemoveProduct)
		r.Get("/products/{id}/history", a.handleProductHistory)

		r.Get("/stats", a.handleStats)
		r.Get("/changes", a.handleChanges)
		r.Get("/dashboard", a.handleDashboard)
	})
	return r
}

// handleLatestResults returns the outcome of the last completed cycle.
// GET /api/results/latest
func (a *API) handleLatestResults(w http.ResponseWriter, r *http.Request) {
	result := a.monitor.LastResult()
	if result == nil {
		http.Error(w, "no completed cycle yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRunCycle kicks off a monitoring cycle in the background.
// POST /api/cycle
func (a *API) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := a.monitor.RunCycleAsync(r.Context())
	if errors.Is(err, ErrCycleRunning) {
		http.Error(w, "cycle already running", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"cycle":  cycle,
	})
}

// handleListProducts lists the tracked set. With a database attached, the
// rows include last known price and check time.
// GET /api/products
func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	if st := a.monitor.Store(); st != nil {
		products, err := st.AllProducts(r.Context())
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"products": products,
				"total":    a.monitor.Tracker().Count(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": a.monitor.Tracker().Products(),
		"total":    a.monitor.Tracker().Count(),
	})
}

// handleAddProduct adds a product URL to the tracked set.
// POST /api/products  body: {"url": "..."}
func (a *API) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	added, err := a.monitor.Tracker().Add(req.URL)
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, "not a recognizable product URL", http.StatusBadRequest)
	case err != nil:
		http.Error(w, "internal error", http.StatusInternalServerError)
	case !added:
		http.Error(w, "product already tracked", http.StatusConflict)
	default:
		writeJSON(w, http.StatusCreated, map[string]any{
			"status": "added",
			"total":  a.monitor.Tracker().Count(),
		})
	}
}

// handleRemoveProduct removes a product by its derived ID.
// DELETE /api/products/{id}
func (a *API) handleRemoveProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := a.monitor.Tracker().RemoveByID(id)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "product not tracked", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "removed",
		"total":  a.monitor.Tracker().Count(),
	})
}

// handleProductHistory returns recent observations for one product, newest
// first. Served from the database when available, from the JSON history
// file otherwise.
// GET /api/products/{id}/history?limit=20
func (a *API) handleProductHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", 20)

	if st := a.monitor.Store(); st != nil {
		history, err := st.PriceHistory(r.Context(), id, limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product_id": id, "history": history})
		return
	}

	history := a.monitor.FileSink().ProductHistory(id)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": id, "history": history})
}

// handleStats returns per-cycle statistics, newest first.
// GET /api/stats?cycles=10
func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	st := a.monitor.Store()
	if st == nil {
		http.Error(w, "database not configured", http.StatusNotImplemented)
		return
	}
	stats, err := st.MonitoringStats(r.Context(), queryInt(r, "cycles", 10))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// handleChanges returns actual price movements from the last N days.
// GET /api/changes?days=7
func (a *API) handleChanges(w http.ResponseWriter, r *http.Request) {
	st := a.monitor.Store()
	if st == nil {
		http.Error(w, "database not configured", http.StatusNotImplemented)
		return
	}
	changes, err := st.RecentChanges(r.Context(), queryInt(r, "days", 7))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

// handleDashboard returns the aggregate counters for the overview page.
// GET /api/dashboard
func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := a.monitor.Store()
	if st == nil {
		http.Error(w, "database not configured", http.StatusNotImplemented)
		return
	}
	dash, err := st.Dashboard(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
