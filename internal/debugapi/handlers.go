package debugapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/werewolf-client/internal/client"
)

// StateSource is satisfied by *client.Client.
type StateSource interface {
	State(ctx context.Context) (client.View, error)
}

const stateTimeout = 2 * time.Second

func view(w http.ResponseWriter, r *http.Request, src StateSource, log *zap.Logger) (client.View, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), stateTimeout)
	defer cancel()

	v, err := src.State(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, client.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		log.Warn("state request failed", zap.Error(err))
		http.Error(w, err.Error(), status)
		return client.View{}, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// State serves the session snapshot without the log history.
func State(src StateSource, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := view(w, r, src, log)
		if !ok {
			return
		}
		writeJSON(w, struct {
			Connected bool   `json:"connected"`
			ConnID    string `json:"connId,omitempty"`
			State     any    `json:"state"`
		}{v.Connected, v.ConnID, v.State})
	}
}

func Log(src StateSource, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := view(w, r, src, log)
		if !ok {
			return
		}
		lines := v.Log
		if lines == nil {
			lines = []client.LogLine{}
		}
		writeJSON(w, lines)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
