package handle

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sugun00/Meta-martin/api/internal/relay"
)

// Info describes the running service for the health and index endpoints.
type Info struct {
	Service string
	Version string
}

type Handle struct {
	svc  *relay.Service
	info Info
	log  zerolog.Logger
}

func New(svc *relay.Service, info Info, log zerolog.Logger) *Handle {
	return &Handle{
		svc:  svc,
		info: info,
		log:  log,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
