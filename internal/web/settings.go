package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"imufusion/internal/ahrs"
	"imufusion/internal/config"
)

// SettingsController is the live estimator's tuning surface.
type SettingsController interface {
	Settings() ahrs.Settings
	ApplySettings(u ahrs.SettingsUpdate) error
}

var settingsPostKeys = map[string]struct{}{
	"filter":               {},
	"complementary_weight": {},
	"rate_weight":          {},
	"beta":                 {},
	"inv_sqrt":             {},
}

// decodeSettingsUpdateStrict accepts a JSON object with any subset of the
// tunable keys. Unknown keys, duplicates, nulls and trailing data are
// rejected.
func decodeSettingsUpdateStrict(body []byte) (ahrs.SettingsUpdate, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return ahrs.SettingsUpdate{}, fmt.Errorf("invalid json: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ahrs.SettingsUpdate{}, errors.New("invalid json: expected object")
	}

	seen := make(map[string]struct{}, len(settingsPostKeys))
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return ahrs.SettingsUpdate{}, fmt.Errorf("invalid json: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return ahrs.SettingsUpdate{}, errors.New("invalid json: expected string key")
		}
		if _, ok := settingsPostKeys[key]; !ok {
			return ahrs.SettingsUpdate{}, fmt.Errorf("invalid json: unknown key %q", key)
		}
		if _, dup := seen[key]; dup {
			return ahrs.SettingsUpdate{}, fmt.Errorf("invalid json: duplicate key %q", key)
		}
		seen[key] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return ahrs.SettingsUpdate{}, fmt.Errorf("invalid json: %w", err)
		}
		if strings.TrimSpace(string(raw)) == "null" {
			return ahrs.SettingsUpdate{}, fmt.Errorf("invalid json: %q cannot be null", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return ahrs.SettingsUpdate{}, fmt.Errorf("invalid json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return ahrs.SettingsUpdate{}, errors.New("invalid json: trailing data")
	}
	if len(seen) == 0 {
		return ahrs.SettingsUpdate{}, errors.New("invalid json: no settings given")
	}

	var out ahrs.SettingsUpdate
	dec2 := json.NewDecoder(bytes.NewReader(body))
	dec2.DisallowUnknownFields()
	if err := dec2.Decode(&out); err != nil {
		return ahrs.SettingsUpdate{}, fmt.Errorf("invalid json: %w", err)
	}
	return out, nil
}

func updateFromSettings(s ahrs.Settings) ahrs.SettingsUpdate {
	return ahrs.SettingsUpdate{
		Filter:              &s.Filter,
		ComplementaryWeight: &s.ComplementaryWeight,
		RateWeight:          &s.RateWeight,
		Beta:                &s.Beta,
		InvSqrt:             &s.InvSqrt,
	}
}

// SettingsStore serves /api/settings. Changes take effect immediately and,
// when ConfigPath is set, are written back to the fusion section of the YAML
// config.
type SettingsStore struct {
	Ctl        SettingsController
	ConfigPath string
}

func (s SettingsStore) persist(cur ahrs.Settings) error {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		return err
	}
	cfg.Fusion.Filter = cur.Filter
	cfg.Fusion.ComplementaryWeight = &cur.ComplementaryWeight
	cfg.Fusion.RateWeight = &cur.RateWeight
	cfg.Fusion.Beta = &cur.Beta
	cfg.Fusion.InvSqrt = cur.InvSqrt
	return config.Save(s.ConfigPath, cfg)
}

func (s SettingsStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Ctl == nil {
			http.Error(w, "settings not available", http.StatusNotImplemented)
			return
		}

		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, s.Ctl.Settings())

		case http.MethodPost:
			if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "application/json" {
				http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, fmt.Sprintf("read failed: %v", err), http.StatusBadRequest)
				return
			}
			u, err := decodeSettingsUpdateStrict(body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			old := s.Ctl.Settings()
			if err := s.Ctl.ApplySettings(u); err != nil {
				http.Error(w, fmt.Sprintf("invalid settings: %v", err), http.StatusBadRequest)
				return
			}
			cur := s.Ctl.Settings()
			if strings.TrimSpace(s.ConfigPath) != "" {
				if err := s.persist(cur); err != nil {
					// Keep the runtime consistent with disk.
					if rbErr := s.Ctl.ApplySettings(updateFromSettings(old)); rbErr != nil {
						log.Printf("web: settings rollback failed: %v", rbErr)
					}
					http.Error(w, fmt.Sprintf("save failed: %v", err), http.StatusInternalServerError)
					return
				}
			}
			log.Printf("web: settings updated: filter=%s complementary=%v rate=%v beta=%v inv_sqrt=%s",
				cur.Filter, cur.ComplementaryWeight, cur.RateWeight, cur.Beta, cur.InvSqrt)
			writeJSON(w, http.StatusOK, cur)

		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
