package handler

import (
	"encoding/json"
	"net/http"
)

type dataResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("error encoding JSON response", "error", err)
	}
}

func (h *Handler) writeData(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, dataResponse{Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}
