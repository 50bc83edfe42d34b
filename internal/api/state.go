package api

import (
	"net/http"

	"github.com/ainova/novagate/internal/inflight"
	"github.com/ainova/novagate/internal/modes"
	"github.com/ainova/novagate/internal/serverstate"
)

// ModeInfo describes one registered mode on GET /api/modes.
type ModeInfo struct {
	Mode     string `json:"mode"`
	Backend  string `json:"backend"`
	Upstream string `json:"upstream"`
	Framing  string `json:"framing"`
}

// ModesHandler lists the registered interaction modes.
func ModesHandler(reg *modes.Registry) http.HandlerFunc {
	infos := make([]ModeInfo, 0, len(reg.Modes()))
	for _, m := range reg.Modes() {
		t, _ := reg.Lookup(m)
		infos = append(infos, ModeInfo{Mode: m, Backend: t.Backend, Upstream: t.URL(), Framing: t.Framing.String()})
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"modes": infos})
	}
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	serverstate.State
	Inflight int64 `json:"inflight"`
}

// StateHandler reports the lifecycle state and the number of relays a
// shutdown would wait for.
func StateHandler(relays *inflight.Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StateResponse{State: serverstate.Snapshot()}
		if relays != nil {
			resp.Inflight = relays.Load()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
