package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jackpotwatch/internal/config"
	"jackpotwatch/internal/fetcher"
	"jackpotwatch/internal/report"
	"jackpotwatch/internal/state"
)

const drawText = "Mon, 08 Jul 2024, 6:30pm"

// 2024-07-08 18:30 SGT.
var drawUTC = time.Date(2024, 7, 8, 10, 30, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	dir      string
	settings config.Settings
	store    *state.FileStore
	stdout   bytes.Buffer
	sends    atomic.Int32
	now      time.Time

	mu           sync.Mutex
	sentText     string
	sendStatus   int
	sourceStatus int
	page         string
}

func newFixture(t *testing.T, jackpot string) *fixture {
	t.Helper()
	f := &fixture{
		t:            t,
		dir:          t.TempDir(),
		sendStatus:   http.StatusOK,
		sourceStatus: http.StatusOK,
		now:          drawUTC.Add(-2 * time.Hour),
	}
	f.page = fmt.Sprintf(`<html><body><h2>Next Jackpot</h2><p>S$ %s est</p><p>Next Draw</p><p>%s</p><p>Draw Results</p></body></html>`, jackpot, drawText)

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		page, status := f.page, f.sourceStatus
		f.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(source.Close)

	telegram := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.sends.Add(1)
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.sentText = payload["text"]
		status := f.sendStatus
		f.mu.Unlock()
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": status == http.StatusOK})
	}))
	t.Cleanup(telegram.Close)

	configPath := filepath.Join(f.dir, "config.yaml")
	body := fmt.Sprintf(`threshold:
  amount: 1000000
  currency: SGD
prize_source:
  url: %s
  timeout: 2s
alert:
  message_template: "TOTO {prize_amount} {currency} (threshold {threshold_amount}) {draw_datetime_text}"
  telegram:
    api_base: %s
    timeout: 2s
`, source.URL, telegram.URL)
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o644))

	f.settings = config.Settings{
		ConfigPath:       configPath,
		StatePath:        filepath.Join(f.dir, ".state", "last_alert.json"),
		TelegramBotToken: "token",
		TelegramChatID:   "chat",
	}
	f.store = state.NewFileStore(f.settings.StatePath)
	return f
}

func (f *fixture) run() (*report.Report, error) {
	svc := New(f.settings, f.store, &f.stdout, zerolog.Nop())
	svc.now = func() time.Time { return f.now }
	rep := report.New(f.now, report.Meta{})
	err := svc.Run(context.Background(), rep)
	exit := 0
	if err != nil {
		exit = 1
	}
	rep.Finalize(f.now, exit)
	return rep, err
}

func (f *fixture) setPage(page string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = page
}

func (f *fixture) lastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentText
}

func (f *fixture) storedID() (string, bool) {
	id, found, err := f.store.Read(context.Background())
	require.NoError(f.t, err)
	return id, found
}

func checkStatus(t *testing.T, rep *report.Report, name string) report.Status {
	t.Helper()
	check, ok := rep.CheckByName(name)
	require.True(t, ok, name)
	return check.Status
}

func TestRunBelowThreshold(t *testing.T) {
	f := newFixture(t, "900,000")

	rep, err := f.run()
	require.NoError(t, err)

	assert.Equal(t, "No alert: jackpot_estimate=900,000, threshold_amount=1,000,000, draw_datetime_text="+drawText+"\n", f.stdout.String())
	assert.Zero(t, f.sends.Load())
	_, found := f.storedID()
	assert.False(t, found, "state must not be written")
	assert.Equal(t, report.StatusOK, rep.Status)
	assert.Equal(t, 0, rep.RowCounts[report.RowAlertsGenerated])
	assert.Equal(t, 1, rep.RowCounts[report.RowPricesFetched])
	assert.Equal(t, 1, rep.RowCounts[report.RowSymbolsMonitored])
	check, _ := rep.CheckByName(report.CheckStatePersisted)
	assert.Equal(t, "No state write required because signal did not trigger.", check.Detail)
}

func TestRunEqualToThresholdDoesNotAlert(t *testing.T) {
	f := newFixture(t, "1,000,000")

	_, err := f.run()
	require.NoError(t, err)
	assert.Zero(t, f.sends.Load())
}

func TestRunSendsAndPersists(t *testing.T) {
	f := newFixture(t, "1,100,000")

	rep, err := f.run()
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.sends.Load())
	assert.Equal(t, "TOTO 1,100,000 SGD (threshold 1,000,000) "+drawText, f.lastSent())
	assert.Equal(t, "Alert sent.\n", f.stdout.String())
	id, found := f.storedID()
	assert.True(t, found)
	assert.Equal(t, drawText, id)
	assert.Equal(t, report.StatusOK, rep.Status)
	assert.Equal(t, 1, rep.RowCounts[report.RowAlertsSent])
	assert.Equal(t, 1, rep.RowCounts[report.RowAlertsGenerated])
}

func TestRunDuplicateDrawSkipsSend(t *testing.T) {
	f := newFixture(t, "1,100,000")
	require.NoError(t, f.store.Write(context.Background(), drawText))

	rep, err := f.run()
	require.NoError(t, err)

	assert.Zero(t, f.sends.Load())
	assert.Equal(t, "Already alerted for this draw\n", f.stdout.String())
	assert.Equal(t, report.StatusOK, rep.Status)
	check, _ := rep.CheckByName(report.CheckTelegramSendSuccessRate)
	assert.Equal(t, "Duplicate draw detected; Telegram send skipped.", check.Detail)
}

func TestRunTwiceSendsOnce(t *testing.T) {
	f := newFixture(t, "1,100,000")

	_, err := f.run()
	require.NoError(t, err)
	_, err = f.run()
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.sends.Load())
}

func TestRunNewDrawAfterPreviousAlert(t *testing.T) {
	f := newFixture(t, "1,100,000")
	require.NoError(t, f.store.Write(context.Background(), "Thu, 04 Jul 2024, 6:30pm"))

	_, err := f.run()
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.sends.Load())
	id, _ := f.storedID()
	assert.Equal(t, drawText, id)
}

func TestRunTelegramFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, "1,100,000")
	f.mu.Lock()
	f.sendStatus = http.StatusInternalServerError
	f.mu.Unlock()

	rep, err := f.run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram send failed")

	_, found := f.storedID()
	assert.False(t, found)
	assert.Equal(t, report.StatusFail, rep.Status)
	assert.Equal(t, 1, rep.RowCounts[report.RowAlertsFailed])
	assert.Equal(t, report.StatusFail, checkStatus(t, rep, report.CheckTelegramSendSuccessRate))
	assert.Equal(t, report.StatusWarn, checkStatus(t, rep, report.CheckStatePersisted))
	assert.Equal(t, report.StatusFail, rep.Breakpoints[report.BreakpointTelegram].Status)
}

func TestRunMissingCredentialsFails(t *testing.T) {
	f := newFixture(t, "1,100,000")
	f.settings.TelegramBotToken = ""

	rep, err := f.run()
	require.Error(t, err)
	assert.Zero(t, f.sends.Load())
	assert.Equal(t, report.StatusFail, checkStatus(t, rep, report.CheckTelegramSendSuccessRate))
}

func TestRunDryRunPersistsWithoutSending(t *testing.T) {
	f := newFixture(t, "1,100,000")
	f.settings.DryRunFlag = "1"

	rep, err := f.run()
	require.NoError(t, err)

	assert.Zero(t, f.sends.Load())
	assert.Equal(t, "DRY_RUN enabled; Telegram message not sent.\nTOTO 1,100,000 SGD (threshold 1,000,000) "+drawText+"\n", f.stdout.String())
	id, found := f.storedID()
	assert.True(t, found)
	assert.Equal(t, drawText, id)
	check, _ := rep.CheckByName(report.CheckStatePersisted)
	assert.Equal(t, "State updated after DRY_RUN signal.", check.Detail)
}

func TestRunTemplateFailure(t *testing.T) {
	f := newFixture(t, "1,100,000")
	f.settings.DryRunFlag = "1"
	raw, err := os.ReadFile(f.settings.ConfigPath)
	require.NoError(t, err)
	raw = bytes.Replace(raw, []byte("{currency}"), []byte("{unknown}"), 1)
	require.NoError(t, os.WriteFile(f.settings.ConfigPath, raw, 0o644))

	rep, err := f.run()
	require.Error(t, err)

	check, _ := rep.CheckByName(report.CheckRulesEvaluated)
	assert.Equal(t, report.StatusFail, check.Status)
	assert.Contains(t, check.Detail, "Signal transformation failed while rendering alert template")
	_, found := f.storedID()
	assert.False(t, found)
}

func TestRunConfigFailure(t *testing.T) {
	f := newFixture(t, "1,100,000")
	f.settings.ConfigPath = filepath.Join(f.dir, "missing.yaml")

	rep, err := f.run()
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, report.StatusFail, checkStatus(t, rep, report.CheckConfigValid))
	assert.Equal(t, report.StatusFail, rep.Breakpoints[report.BreakpointConfig].Status)
	assert.Equal(t, report.StatusWarn, rep.Breakpoints[report.BreakpointFetch].Status, "later stages stay unstarted")
	assert.Equal(t, report.StatusFail, rep.Status)
}

func TestRunParseFailure(t *testing.T) {
	f := newFixture(t, "1,100,000")
	f.setPage("<html><body>Under maintenance</body></html>")

	rep, err := f.run()
	require.Error(t, err)
	assert.Equal(t, report.StatusFail, checkStatus(t, rep, report.CheckPriceFetchSuccessRate))
	assert.Equal(t, 0, rep.RowCounts[report.RowPricesFetched])
	assert.Equal(t, "Not evaluated.", mustCheck(t, rep, report.CheckRulesEvaluated).Detail)
	assert.Zero(t, f.sends.Load())
}

func TestRunFetchTransportFailure(t *testing.T) {
	f := newFixture(t, "1,100,000")
	f.mu.Lock()
	f.sourceStatus = http.StatusServiceUnavailable
	f.mu.Unlock()

	rep, err := f.run()
	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr), "want FetchError, got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)

	check := mustCheck(t, rep, report.CheckPriceFetchSuccessRate)
	assert.Equal(t, report.StatusFail, check.Status)
	require.NotNil(t, check.Metric)
	assert.Zero(t, *check.Metric)
	assert.Equal(t, 0, rep.RowCounts[report.RowPricesFetched])
	assert.Equal(t, report.StatusFail, rep.Breakpoints[report.BreakpointFetch].Status)
	assert.Equal(t, report.StatusFail, rep.Status)
	assert.Zero(t, f.sends.Load())

	_, found := f.storedID()
	assert.False(t, found)
}

func TestRunStaleSourceWarns(t *testing.T) {
	f := newFixture(t, "900,000")
	f.now = drawUTC.Add(96 * time.Hour)

	rep, err := f.run()
	require.NoError(t, err)

	check := mustCheck(t, rep, report.CheckFreshnessWithinThreshold)
	assert.Equal(t, report.StatusWarn, check.Status)
	assert.Equal(t, "Freshness lag 345600.0s exceeds threshold 259200.0s.", check.Detail)
	assert.Contains(t, rep.Warnings, "Source data appears stale; investigate upstream freshness.")
	assert.Equal(t, report.StatusWarn, rep.Status)
	require.NotNil(t, rep.Freshness.MaxDate)
	assert.Equal(t, "2024-07-08T10:30:00Z", *rep.Freshness.MaxDate)
}

func TestRunFutureDrawHasZeroLag(t *testing.T) {
	f := newFixture(t, "900,000")

	rep, err := f.run()
	require.NoError(t, err)

	require.NotNil(t, rep.Freshness.LagSeconds)
	assert.Equal(t, 0.0, *rep.Freshness.LagSeconds)
	assert.Equal(t, "Freshness lag 0.0s is within threshold 259200.0s.", mustCheck(t, rep, report.CheckFreshnessWithinThreshold).Detail)
}

func TestRunUnparseableDrawTimeWarns(t *testing.T) {
	f := newFixture(t, "900,000")
	f.setPage(`<p>Next Jackpot $900,000</p><p>Next Draw: To be announced</p>`)

	rep, err := f.run()
	require.NoError(t, err)

	assert.Nil(t, rep.Freshness.MaxDate)
	assert.Nil(t, rep.Freshness.LagSeconds)
	assert.Equal(t, report.StatusWarn, checkStatus(t, rep, report.CheckFreshnessWithinThreshold))
	assert.Contains(t, rep.Warnings, "Freshness check skipped because draw date parsing failed.")
}

func TestRunCorruptStateFails(t *testing.T) {
	f := newFixture(t, "1,100,000")
	require.NoError(t, os.MkdirAll(filepath.Dir(f.settings.StatePath), 0o755))
	require.NoError(t, os.WriteFile(f.settings.StatePath, []byte("{oops"), 0o644))

	rep, err := f.run()
	var stateErr *state.StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, report.StatusFail, checkStatus(t, rep, report.CheckStatePersisted))
	assert.Zero(t, f.sends.Load())
}

func mustCheck(t *testing.T, rep *report.Report, name string) report.KeyCheck {
	t.Helper()
	check, ok := rep.CheckByName(name)
	require.True(t, ok)
	return check
}
