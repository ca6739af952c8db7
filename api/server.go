package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// NewServer exposes the hub on /ws and a status snapshot on /status
func NewServer(addr string, h *Hub) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           httpHandler(h),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func httpHandler(h *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/status", h.serveStatus)
	return mux
}

func (h *Hub) serveStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		http.Error(w, "no session", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.status())
}
