package handler

import "net/http"

// HealthReport is what GET /healthz returns.
type HealthReport struct {
	Status          string `json:"status"`
	DirectoryLoaded bool   `json:"directoryLoaded"`
	DirectoryUsers  int    `json:"directoryUsers"`
	OnlineUsers     int    `json:"onlineUsers"`
	Connections     int    `json:"connections"`
}

// HealthSource reports process state for the health endpoint.
type HealthSource interface {
	Health() HealthReport
}

// HealthFunc adapts a plain function to HealthSource.
type HealthFunc func() HealthReport

func (f HealthFunc) Health() HealthReport { return f() }

// HandleHealth returns 200 with a snapshot of local state. It never calls
// the chat platform, so it stays up while the platform is down.
//
// HTTP: GET /healthz
func HandleHealth(src HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := src.Health()
		if report.Status == "" {
			report.Status = "ok"
		}
		writeJSON(w, http.StatusOK, report)
	}
}
