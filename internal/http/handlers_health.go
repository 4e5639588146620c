package httpapi

import (
	"net/http"
)

// handleHealth reports whether the server has everything it needs. A
// missing gateway degrades the status instead of failing requests outright.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	flags := map[string]bool{
		"database": s.store != nil,
	}
	status := "ok"
	if s.cfg != nil {
		flags["gateway_url"] = s.cfg.GatewayURL != ""
		flags["gateway_token"] = s.cfg.GatewayToken != ""
		if !s.cfg.GatewayEnabled() {
			status = "missing_config"
		}
	} else {
		flags["gateway_url"] = s.gw.Enabled()
		flags["gateway_token"] = s.gw.Enabled()
		if !s.gw.Enabled() {
			status = "missing_config"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"config": flags,
	})
}
