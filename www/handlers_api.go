package www

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultLimit = 100

func queryLimit(r *http.Request) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return defaultLimit
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	busOK := h.engine.Bus().Ping() == nil
	dbOK := h.engine.DB().PingContext(r.Context()) == nil
	status := "ok"
	if !busOK || !dbOK {
		status = "degraded"
	}
	h.jsonOK(w, map[string]any{
		"status":   status,
		"bus":      busOK,
		"database": dbOK,
		"recycler": h.engine.RecyclerRunning(),
	})
}

func (h *Handlers) apiStatus(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Status())
}

func (h *Handlers) apiListSlots(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Slots())
}

func (h *Handlers) apiReclaimCount(w http.ResponseWriter, r *http.Request) {
	addr, err := strconv.Atoi(r.URL.Query().Get("address"))
	if err != nil || addr <= 0 {
		h.jsonError(w, "invalid address", http.StatusBadRequest)
		return
	}
	mirror := h.engine.SlotState()
	if mirror == nil {
		h.jsonError(w, "slot state mirror not configured", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	n, err := mirror.GetReclaimCount(ctx, addr)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonOK(w, map[string]any{"address": addr, "reclaims": n})
}

func (h *Handlers) apiListReclamations(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	q := r.URL.Query()
	switch {
	case q.Get("run") != "":
		recs, err := db.ListReclamationsByRun(q.Get("run"))
		h.jsonResult(w, recs, err)
	case q.Get("address") != "":
		addr, err := strconv.Atoi(q.Get("address"))
		if err != nil {
			h.jsonError(w, "invalid address", http.StatusBadRequest)
			return
		}
		recs, err := db.ListReclamationsByAddress(addr, queryLimit(r))
		h.jsonResult(w, recs, err)
	default:
		recs, err := db.ListReclamations(queryLimit(r))
		h.jsonResult(w, recs, err)
	}
}

func (h *Handlers) apiListPasses(w http.ResponseWriter, r *http.Request) {
	passes, err := h.engine.DB().ListPasses(queryLimit(r))
	h.jsonResult(w, passes, err)
}

func (h *Handlers) apiGetPass(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.DB().GetPass(chi.URLParam(r, "runID"))
	if err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, p)
}

func (h *Handlers) apiListAudit(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	q := r.URL.Query()
	if entity := q.Get("entity"); entity != "" {
		id, _ := strconv.ParseInt(q.Get("id"), 10, 64)
		entries, err := db.ListEntityAudit(entity, id, queryLimit(r))
		h.jsonResult(w, entries, err)
		return
	}
	entries, err := db.ListAuditLog(queryLimit(r))
	h.jsonResult(w, entries, err)
}

func (h *Handlers) jsonResult(w http.ResponseWriter, data any, err error) {
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, data)
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonCode(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	h.jsonCode(w, code, map[string]string{"error": msg})
}
