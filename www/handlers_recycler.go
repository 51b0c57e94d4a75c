package www

import (
	"net/http"
)

func (h *Handlers) apiRecyclerStart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.StartRecycler(h.getUsername(r)); err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonOK(w, h.engine.Status())
}

func (h *Handlers) apiRecyclerStop(w http.ResponseWriter, r *http.Request) {
	h.engine.StopRecycler(h.getUsername(r))
	h.jsonOK(w, h.engine.Status())
}

// apiRecyclerRun performs one pass immediately and returns its summary.
func (h *Handlers) apiRecyclerRun(w http.ResponseWriter, r *http.Request) {
	sum, err := h.engine.RunOnce(r.Context(), h.getUsername(r))
	if err != nil {
		h.jsonCode(w, http.StatusBadGateway, sum)
		return
	}
	h.jsonOK(w, sum)
}
