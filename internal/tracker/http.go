package tracker

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/WendelHime/goswarm/internal/shared/models"
)

type peerStatus struct {
	Addr   string              `json:"addr"`
	Pieces []models.PieceIndex `json:"pieces"`
}

type statusResponse struct {
	Peers []peerStatus `json:"peers"`
}

// NewStatusHandler serves a read-only JSON view of the registry on GET /peers.
func NewStatusHandler(registry *Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/peers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := registry.Snapshot()
		resp := statusResponse{Peers: make([]peerStatus, 0, len(snap))}
		for _, e := range snap {
			resp.Peers = append(resp.Peers, peerStatus{Addr: e.Addr.String(), Pieces: e.Pieces.Sorted()})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn("failed to write status", slog.Any("error", err))
		}
	})
	return mux
}
