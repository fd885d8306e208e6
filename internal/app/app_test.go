package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jackpotwatch/internal/config"
	"jackpotwatch/internal/report"
)

const page = `<html><body><div>Next Jackpot</div><div>S$2,000,000 est</div>
<div>Next Draw</div><div>Thu, 11 Jul 2024, 6:30pm</div><div>Draw Results</div></body></html>`

type harness struct {
	app    *App
	stdout bytes.Buffer
	stderr bytes.Buffer
	dir    string
}

func newHarness(t *testing.T, threshold string) *harness {
	t.Helper()
	dir := t.TempDir()

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(source.Close)

	configPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("threshold:\n  amount: %s\nprize_source:\n  url: %s\nalert:\n  message_template: \"{prize_amount} {currency} on {draw_datetime_text}\"\n", threshold, source.URL)
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o644))

	h := &harness{dir: dir}
	h.app = NewApp(config.Settings{
		ConfigPath:                configPath,
		StatePath:                 filepath.Join(dir, ".state", "last_alert.json"),
		RuntimeReportPath:         filepath.Join(dir, ".state", "runtime_report.json"),
		MetricsTextfilePath:       filepath.Join(dir, "metrics", "jackpotwatch.prom"),
		FreshnessThresholdSeconds: "1e12",
		DryRunFlag:                "1",
	}, zerolog.Nop())
	h.app.Stdout = &h.stdout
	h.app.Stderr = &h.stderr
	return h
}

func TestCheckBelowThresholdWritesReport(t *testing.T) {
	h := newHarness(t, "5000000")

	code := h.app.Check(context.Background())
	require.Equal(t, 0, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "No alert: jackpot_estimate=2,000,000, threshold_amount=5,000,000")

	rep, err := report.Load(h.app.Settings.RuntimeReportPath)
	require.NoError(t, err)
	assert.Equal(t, report.StatusOK, rep.Status)
	assert.Equal(t, report.StatusOK, rep.Breakpoints[report.BreakpointFinal].Status)
	assert.Contains(t, rep.Breakpoints[report.BreakpointFinal].Detail, "Runtime report prepared at")
	require.NotNil(t, rep.Freshness.MaxDate)
	assert.Equal(t, "2024-07-11T10:30:00Z", *rep.Freshness.MaxDate)

	metricsFile, err := os.ReadFile(h.app.Settings.MetricsTextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(metricsFile), "jackpotwatch_run_status 0")
}

func TestCheckDryRunThenDuplicate(t *testing.T) {
	h := newHarness(t, "1000000")

	require.Equal(t, 0, h.app.Check(context.Background()))
	assert.Contains(t, h.stdout.String(), "DRY_RUN enabled; Telegram message not sent.\n2,000,000 SGD on Thu, 11 Jul 2024, 6:30pm\n")

	h.stdout.Reset()
	require.Equal(t, 0, h.app.Check(context.Background()))
	assert.Equal(t, "Already alerted for this draw\n", h.stdout.String())
}

func TestCheckConfigFailure(t *testing.T) {
	h := newHarness(t, "1000000")
	h.app.Settings.ConfigPath = filepath.Join(h.dir, "nope.yaml")

	code := h.app.Check(context.Background())
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(h.stderr.String(), "Error: "), h.stderr.String())

	rep, err := report.Load(h.app.Settings.RuntimeReportPath)
	require.NoError(t, err)
	assert.Equal(t, report.StatusFail, rep.Status)
	require.NotEmpty(t, rep.Warnings)
	assert.Contains(t, rep.Warnings[0], "nope.yaml")
}

func TestCheckReportWriteFailureKeepsExitCode(t *testing.T) {
	h := newHarness(t, "5000000")
	blocker := filepath.Join(h.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	h.app.Settings.RuntimeReportPath = filepath.Join(blocker, "report.json")

	assert.Equal(t, 0, h.app.Check(context.Background()))
	assert.Contains(t, h.stderr.String(), "Warning: failed to write runtime report")
}

func TestEmitProbe(t *testing.T) {
	h := newHarness(t, "5000000")
	require.Equal(t, 0, h.app.Check(context.Background()))

	output := filepath.Join(h.dir, "ops", "probe.json")
	err := h.app.EmitProbe(ProbeOptions{
		ReportPath:         h.app.Settings.RuntimeReportPath,
		Output:             output,
		WorkloadOutcome:    "failure",
		FreshnessThreshold: config.DefaultFreshnessThreshold,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status": "FAIL"`)
	assert.Contains(t, string(raw), "workload outcome: failure")
	assert.Contains(t, h.stdout.String(), "Wrote probe: "+output)
}

func TestEmitProbeFallback(t *testing.T) {
	h := newHarness(t, "5000000")
	output := filepath.Join(h.dir, "ops", "probe.json")
	opts := ProbeOptions{ReportPath: filepath.Join(h.dir, "missing.json"), Output: output}

	require.NoError(t, h.app.EmitProbe(opts))
	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Probe emitter failed")
	assert.Contains(t, h.stderr.String(), "Emitter error ignored (non-blocking)")

	opts.Strict = true
	assert.Error(t, h.app.EmitProbe(opts))
}

func TestParseFromFile(t *testing.T) {
	h := newHarness(t, "5000000")
	path := filepath.Join(h.dir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))

	require.NoError(t, h.app.Parse(context.Background(), ParseOptions{File: path}))
	out := h.stdout.String()
	assert.Contains(t, out, "jackpot_estimate")
	assert.Contains(t, out, "2000000")
	assert.Contains(t, out, "2024-07-11T10:30:00Z")
	assert.Contains(t, out, "[debug] Parse succeeded")

	require.NoError(t, os.WriteFile(path, []byte("<p>nothing here</p>"), 0o644))
	h.stdout.Reset()
	assert.Error(t, h.app.Parse(context.Background(), ParseOptions{File: path}))
	assert.Contains(t, h.stdout.String(), "[debug] Parse failed: jackpot anchor not found")
}

func TestParseFromConfiguredSource(t *testing.T) {
	h := newHarness(t, "5000000")

	require.NoError(t, h.app.Parse(context.Background(), ParseOptions{}))
	assert.Contains(t, h.stdout.String(), "Thu, 11 Jul 2024, 6:30pm")
}

func TestSimulateDryRun(t *testing.T) {
	h := newHarness(t, "1000000")
	h.app.now = func() time.Time { return time.Date(2024, 7, 11, 0, 0, 0, 0, time.UTC) }

	rep, err := h.app.Simulate(context.Background(), SimulateOptions{
		Jackpot:  decimal.NewFromInt(3_000_000),
		DrawText: "Thu, 11 Jul 2024, 6:30pm",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.RowCounts[report.RowAlertsGenerated])
	assert.Contains(t, h.stdout.String(), "3,000,000 SGD on Thu, 11 Jul 2024, 6:30pm")
	assert.Contains(t, h.stdout.String(), "simulated run status: OK")

	_, statErr := os.Stat(h.app.Settings.StatePath)
	assert.True(t, os.IsNotExist(statErr), "simulate must not touch the state file")
}
