package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"imufusion/internal/config"
	"imufusion/internal/fusion"
	"imufusion/internal/replay"
)

func TestSummarizeSampleLog(t *testing.T) {
	recs := []replay.Record{
		{Start: true},
		{At: 0, Sample: fusion.Sample{Az: 1, Gx: 2}},
		{At: 10 * time.Millisecond, Sample: fusion.Sample{Az: 1, Gx: 4}},
		{At: 20 * time.Millisecond, Sample: fusion.Sample{}},
		{Start: true},
		{At: 0, Sample: fusion.Sample{Ax: 0.6, Az: 0.8, Gz: -4}},
		{At: 40 * time.Millisecond, Sample: fusion.Sample{Az: 1}},
	}

	s := summarizeSampleLog(recs)
	if s.Segments != 2 {
		t.Fatalf("segments=%d want %d", s.Segments, 2)
	}
	if s.Samples != 5 {
		t.Fatalf("samples=%d want %d", s.Samples, 5)
	}
	if s.ZeroAccel != 1 {
		t.Fatalf("zero_accel=%d want %d", s.ZeroAccel, 1)
	}
	if s.MaxDuration != 40*time.Millisecond {
		t.Fatalf("maxDuration=%s want %s", s.MaxDuration, 40*time.Millisecond)
	}
	// Gaps 10ms, 10ms, then 40ms in the second segment.
	if s.MeanInterval != 20*time.Millisecond {
		t.Fatalf("meanInterval=%s want %s", s.MeanInterval, 20*time.Millisecond)
	}
	if d := s.MeanAccelG - 0.8; d > 1e-12 || d < -1e-12 {
		t.Fatalf("meanAccel=%v want 0.8", s.MeanAccelG)
	}
	if s.MeanGyro != [3]float64{6.0 / 5, 0, -4.0 / 5} {
		t.Fatalf("meanGyro=%v", s.MeanGyro)
	}
}

func TestSummarizeSampleLog_NoStartLine(t *testing.T) {
	s := summarizeSampleLog([]replay.Record{{At: time.Second, Sample: fusion.Sample{Az: 1}}})
	if s.Segments != 1 || s.Samples != 1 || s.MeanInterval != 0 {
		t.Fatalf("summary=%+v", s)
	}
}

func TestPrintLogSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.log")
	var b strings.Builder
	b.WriteString("# level and still\nSTART\n")
	for i := 0; i < 50; i++ {
		b.WriteString(strconv.FormatInt(int64(i)*int64(10*time.Millisecond), 10))
		b.WriteString(",0,0,1,0,0,0\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	var out bytes.Buffer
	if err := printLogSummary(&out, path, cfg.Fusion); err != nil {
		t.Fatalf("printLogSummary() error: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"segments: 1\n",
		"samples: 50\n",
		"mean_interval: 10ms\n",
		"filter: madgwick\n",
		"final_roll_deg: 0.00\n",
		"final_pitch_deg: 0.00\n",
		"skipped_corrections: 0\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintLogSummary_Errors(t *testing.T) {
	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	var out bytes.Buffer
	if err := printLogSummary(&out, "  ", cfg.Fusion); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if err := printLogSummary(&out, filepath.Join(t.TempDir(), "missing.log"), cfg.Fusion); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
