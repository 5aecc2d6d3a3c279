package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imufusion/internal/ahrs"
	"imufusion/internal/config"
)

func writeTempConfigFile(t *testing.T, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return p
}

func postSettings(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url+"/api/settings", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/settings error: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestSettingsGET(t *testing.T) {
	ts := httptest.NewServer(Handler(Options{Service: newService(t)}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var got ahrs.Settings
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := ahrs.Settings{
		Filter:              "madgwick",
		SampleInterval:      "10ms",
		ComplementaryWeight: 0.95,
		RateWeight:          0.7,
		Beta:                0.1,
		InvSqrt:             "fast",
	}
	if got != want {
		t.Fatalf("settings=%+v want %+v", got, want)
	}
}

func TestSettingsPOST_RejectedValuesChangeNothing(t *testing.T) {
	svc := newService(t)
	ts := httptest.NewServer(Handler(Options{Service: svc}))
	defer ts.Close()
	before := svc.Settings()

	cases := []string{
		`{"complementary_weight": 1.0}`,
		`{"rate_weight": 1.5}`,
		`{"beta": -0.5, "rate_weight": 0.2}`,
		`{"inv_sqrt": "newton"}`,
		`{"filter": "kalman"}`,
		`{"beta": null}`,
		`{"beta": 0.2, "beta": 0.3}`,
		`{"gain": 0.2}`,
		`{}`,
		`{"beta": 0.2} {}`,
		`[1]`,
	}
	for _, body := range cases {
		resp, msg := postSettings(t, ts.URL, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status=%d body=%s", body, resp.StatusCode, msg)
		}
		if got := svc.Settings(); got != before {
			t.Fatalf("%s: settings changed to %+v", body, got)
		}
	}
}

func TestSettingsPOST_RequiresJSON(t *testing.T) {
	ts := httptest.NewServer(Handler(Options{Service: newService(t)}))
	defer ts.Close()
	resp, err := http.Post(ts.URL+"/api/settings", "text/plain", strings.NewReader(`{"beta":0.2}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestSettingsPOST_AppliesAndSaves(t *testing.T) {
	cfgPath := writeTempConfigFile(t, "imu:\n  source: sim\noutput:\n  dest: '127.0.0.1:4000'\n")
	svc := newService(t)
	ts := httptest.NewServer(Handler(Options{Service: svc, ConfigPath: cfgPath}))
	defer ts.Close()

	resp, body := postSettings(t, ts.URL, `{"filter":"complementary","complementary_weight":0.98,"beta":0.05,"inv_sqrt":"exact"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	got := svc.Settings()
	if got.Filter != "complementary" || got.ComplementaryWeight != 0.98 || got.Beta != 0.05 || got.InvSqrt != "exact" {
		t.Fatalf("live settings=%+v", got)
	}
	if got.RateWeight != 0.7 {
		t.Fatalf("rate_weight=%v want untouched", got.RateWeight)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fusion.Filter != config.FilterComplementary || cfg.Fusion.InvSqrt != "exact" {
		t.Fatalf("fusion=%+v", cfg.Fusion)
	}
	if cfg.Fusion.ComplementaryWeight == nil || *cfg.Fusion.ComplementaryWeight != 0.98 {
		t.Fatalf("complementary_weight=%v", cfg.Fusion.ComplementaryWeight)
	}
	if cfg.Fusion.Beta == nil || *cfg.Fusion.Beta != 0.05 {
		t.Fatalf("beta=%v", cfg.Fusion.Beta)
	}
	if cfg.Output.Dest != "127.0.0.1:4000" || cfg.IMU.Source != config.SourceSim {
		t.Fatalf("unrelated config lost: output=%+v imu=%+v", cfg.Output, cfg.IMU)
	}
}

func TestSettingsPOST_SaveFailureRollsBack(t *testing.T) {
	svc := newService(t)
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	ts := httptest.NewServer(Handler(Options{Service: svc, ConfigPath: missing}))
	defer ts.Close()
	before := svc.Settings()

	resp, body := postSettings(t, ts.URL, `{"beta":0.4}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if got := svc.Settings(); got != before {
		t.Fatalf("settings=%+v want rollback to %+v", got, before)
	}
}
