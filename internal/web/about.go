package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"
)

type AboutResponse struct {
	Service   string `json:"service"`
	GoVersion string `json:"go_version"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`

	Uptime string `json:"uptime"`
	// Estimator fields are omitted when no service is attached.
	Filter         string `json:"filter,omitempty"`
	SampleInterval string `json:"sample_interval,omitempty"`
	InvSqrt        string `json:"inv_sqrt,omitempty"`
	Ticks          uint64 `json:"ticks"`
}

// buildInfo is read once; it never changes for a running binary.
func buildInfo() (version, commit string, dirty bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return "", "", false
	}
	version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return version, commit, dirty
}

func aboutHandler(svc AttitudeService, started time.Time) http.Handler {
	version, commit, dirty := buildInfo()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		resp := AboutResponse{
			Service:   "imufusion",
			GoVersion: runtime.Version(),
			Version:   version,
			Commit:    commit,
			Dirty:     dirty,
			Uptime:    time.Since(started).Round(time.Second).String(),
		}
		if svc != nil {
			st := svc.Settings()
			resp.Filter = st.Filter
			resp.SampleInterval = st.SampleInterval
			resp.InvSqrt = st.InvSqrt
			resp.Ticks = svc.Snapshot().Ticks
		}
		writeJSON(w, http.StatusOK, resp)
	})
}
