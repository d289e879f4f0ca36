package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/network"
)

// PathPush is the websocket endpoint served by the push hub.
const PathPush = "/ws"

// NewRouter returns the polling interface for st. When hub is not nil the
// push endpoint is mounted at PathPush as well.
func NewRouter(st *Store, hub *Hub) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(network.PathSceneID, handleSceneID(st)).Methods(http.MethodGet)
	r.HandleFunc(network.PathSceneData, handleSceneData(st)).Methods(http.MethodGet)
	r.HandleFunc(network.PathSceneState, handleSceneState(st)).Methods(http.MethodGet)
	r.HandleFunc(network.PathData+"{hash}", handleBlob(st)).Methods(http.MethodGet)
	if hub != nil {
		r.Handle(PathPush, hub)
	}

	httpLog := zap.NewStdLog(logger.Named("http"))
	h := handlers.RecoveryHandler(handlers.RecoveryLogger(httpLog))(r)
	return handlers.LoggingHandler(httpLog.Writer(), h)
}

func handleSceneID(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(st.Bundle().ID))
	}
}

func handleSceneData(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(st.Bundle().JSON)
	}
}

func handleSceneState(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st.State()); err != nil {
			logger.Warn("encoding scene state", zap.Error(err))
		}
	}
}

func handleBlob(st *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := mux.Vars(r)["hash"]
		blob, ok := st.Bundle().Blobs[hash]
		if !ok {
			http.Error(w, "unknown blob "+hash, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(blob)
	}
}
