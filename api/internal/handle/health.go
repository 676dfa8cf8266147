package handle

import (
	"net/http"
	"time"
)

type healthResponse struct {
	OK                   bool   `json:"ok"`
	Timestamp            string `json:"timestamp"`
	Service              string `json:"service"`
	Version              string `json:"version"`
	CredentialConfigured bool   `json:"credential_configured"`
	Provider             string `json:"provider"`
}

type rootResponse struct {
	Message              string            `json:"message"`
	Status               string            `json:"status"`
	CredentialConfigured bool              `json:"credential_configured"`
	Endpoints            map[string]string `json:"endpoints"`
}

// Health never fails; it only reports process state.
func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:                   true,
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		Service:              h.info.Service,
		Version:              h.info.Version,
		CredentialConfigured: h.svc.CredentialConfigured(),
		Provider:             h.svc.EngineName(),
	})
}

func (h *Handle) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Message:              h.info.Service + " Server",
		Status:               "running",
		CredentialConfigured: h.svc.CredentialConfigured(),
		Endpoints: map[string]string{
			"health":  "GET /health",
			"analyze": "POST /analyze-image",
		},
	})
}
