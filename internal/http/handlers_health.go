package httpx

import "net/http"

// healthHandler reports process liveness. It deliberately avoids touching
// the token store or the upstream API: a degraded backend shows up as
// pending sessions, not as a dead gateway.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
