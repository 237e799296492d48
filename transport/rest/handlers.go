package rest

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string  `json:"status"`
	Rooms         int     `json:"rooms"`
	Connections   int     `json:"connections"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type statsResponse struct {
	TotalRooms       int `json:"totalRooms"`
	ActiveRooms      int `json:"activeRooms"`
	TotalConnections int `json:"totalConnections"`
	WaitingRooms     int `json:"waitingRooms"`
	PlayingRooms     int `json:"playingRooms"`
	FinishedRooms    int `json:"finishedRooms"`
}

func (that *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	that.writeJSON(w, healthResponse{
		Status:        "running",
		Rooms:         that.rooms.Stats().Total,
		Connections:   that.connections.ConnectionCount(),
		UptimeSeconds: time.Since(that.startedAt).Seconds(),
	})
}

func (that *Server) statsHandler(w http.ResponseWriter, _ *http.Request) {
	stats := that.rooms.Stats()

	that.writeJSON(w, statsResponse{
		TotalRooms:       stats.Total,
		ActiveRooms:      stats.Active,
		TotalConnections: that.connections.ConnectionCount(),
		WaitingRooms:     stats.Waiting,
		PlayingRooms:     stats.Playing,
		FinishedRooms:    stats.Finished,
	})
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}
