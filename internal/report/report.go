// Package report accumulates the machine-readable outcome of a pipeline run.
//
// A Report is created when a run starts, mutated by each pipeline stage through
// Check, Breakpoint and Warn, and finalized exactly once when the run ends.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"jackpotwatch/internal/fileutil"
)

// Status is the severity of a check, breakpoint or whole run.
type Status string

const (
	StatusOK   Status = "OK"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// Key check names. Every one of them is present in a finalized report.
const (
	CheckConfigValid              = "config_valid"
	CheckPriceFetchSuccessRate    = "price_fetch_success_rate"
	CheckFreshnessWithinThreshold = "freshness_within_threshold"
	CheckRulesEvaluated           = "rules_evaluated"
	CheckTelegramSendSuccessRate  = "telegram_send_success_rate"
	CheckStatePersisted           = "state_persisted"
)

// Breakpoint names, one per pipeline stage.
const (
	BreakpointConfig   = "config_load_validation"
	BreakpointFetch    = "market_price_fetch"
	BreakpointRules    = "transformation_signal_evaluation"
	BreakpointState    = "dedupe_state_read_write"
	BreakpointTelegram = "telegram_send_step"
	BreakpointFinal    = "final_summary_write"
)

// Row counter names.
const (
	RowSymbolsMonitored = "symbols_monitored"
	RowPricesFetched    = "prices_fetched"
	RowAlertsGenerated  = "alerts_generated"
	RowAlertsSent       = "alerts_sent"
	RowAlertsFailed     = "alerts_failed"
)

// AlertPayloadSchema describes the fields an alert message is rendered from.
// Its hash changes whenever the alert contract does.
const AlertPayloadSchema = "telegram_text_v1|prize_amount|threshold_amount|currency|draw_datetime_text"

const (
	notEvaluated = "Not evaluated."
	notStarted   = "Not started."
)

// RequiredChecks lists the key checks in report order.
var RequiredChecks = []string{
	CheckConfigValid,
	CheckPriceFetchSuccessRate,
	CheckFreshnessWithinThreshold,
	CheckRulesEvaluated,
	CheckTelegramSendSuccessRate,
	CheckStatePersisted,
}

var breakpointNames = []string{
	BreakpointConfig,
	BreakpointFetch,
	BreakpointRules,
	BreakpointState,
	BreakpointTelegram,
	BreakpointFinal,
}

var rowCountNames = []string{
	RowSymbolsMonitored,
	RowPricesFetched,
	RowAlertsGenerated,
	RowAlertsSent,
	RowAlertsFailed,
}

// KeyCheck is one monitored guarantee of the run.
type KeyCheck struct {
	Name   string   `json:"name"`
	Status Status   `json:"status"`
	Detail string   `json:"detail"`
	Metric *float64 `json:"metric,omitempty"`
}

// Breakpoint marks how far a pipeline stage got.
type Breakpoint struct {
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

// Freshness describes how old the source data was when the run observed it.
type Freshness struct {
	MaxDate    *string  `json:"max_date"`
	LagSeconds *float64 `json:"lag_seconds"`
}

// Report is the runtime report written at the end of every run.
type Report struct {
	Status          Status                `json:"status"`
	LastRunTime     *string               `json:"last_run_time"`
	DurationSeconds *float64              `json:"duration_seconds"`
	Freshness       Freshness             `json:"freshness"`
	RowCounts       map[string]int        `json:"row_counts"`
	SchemaHash      string                `json:"schema_hash"`
	KeyChecks       []KeyCheck            `json:"key_checks"`
	Warnings        []string              `json:"warnings"`
	Breakpoints     map[string]Breakpoint `json:"breakpoints"`
	RunStartedAt    string                `json:"run_started_at"`
	RunFinishedAt   *string               `json:"run_finished_at"`
	Meta            Meta                  `json:"meta"`

	startedAt time.Time
}

// New returns a report in its pessimistic initial state: FAIL overall, every
// check WARN/"Not evaluated." and every breakpoint WARN/"Not started.".
func New(startedAt time.Time, meta Meta) *Report {
	r := &Report{
		Status:       StatusFail,
		RowCounts:    make(map[string]int, len(rowCountNames)),
		SchemaHash:   SchemaHash(),
		KeyChecks:    make([]KeyCheck, 0, len(RequiredChecks)),
		Warnings:     []string{},
		Breakpoints:  make(map[string]Breakpoint, len(breakpointNames)),
		RunStartedAt: ISOTime(startedAt),
		Meta:         meta,
		startedAt:    startedAt,
	}
	for _, name := range rowCountNames {
		r.RowCounts[name] = 0
	}
	for _, name := range RequiredChecks {
		r.KeyChecks = append(r.KeyChecks, KeyCheck{Name: name, Status: StatusWarn, Detail: notEvaluated})
	}
	for _, name := range breakpointNames {
		r.Breakpoints[name] = Breakpoint{Status: StatusWarn, Detail: notStarted}
	}
	return r
}

// SchemaHash is the sha256 of AlertPayloadSchema.
func SchemaHash() string {
	sum := sha256.Sum256([]byte(AlertPayloadSchema))
	return hex.EncodeToString(sum[:])
}

// Check sets a key check, replacing an existing entry of the same name in place.
func (r *Report) Check(name string, status Status, detail string) {
	r.setCheck(name, status, detail, nil)
}

// CheckMetric is Check with a numeric metric attached.
func (r *Report) CheckMetric(name string, status Status, detail string, metric float64) {
	r.setCheck(name, status, detail, &metric)
}

func (r *Report) setCheck(name string, status Status, detail string, metric *float64) {
	entry := KeyCheck{Name: name, Status: NormalizeStatus(string(status)), Detail: strings.TrimSpace(detail), Metric: metric}
	for i := range r.KeyChecks {
		if r.KeyChecks[i].Name == name {
			r.KeyChecks[i] = entry
			return
		}
	}
	r.KeyChecks = append(r.KeyChecks, entry)
}

// CheckByName returns the named key check.
func (r *Report) CheckByName(name string) (KeyCheck, bool) {
	for _, check := range r.KeyChecks {
		if check.Name == name {
			return check, true
		}
	}
	return KeyCheck{}, false
}

// Breakpoint records the outcome of a pipeline stage.
func (r *Report) Breakpoint(name string, status Status, detail string) {
	if r.Breakpoints == nil {
		r.Breakpoints = make(map[string]Breakpoint)
	}
	r.Breakpoints[name] = Breakpoint{Status: NormalizeStatus(string(status)), Detail: strings.TrimSpace(detail)}
}

// Warn appends a warning unless it is blank or already present.
func (r *Report) Warn(warning string) {
	text := strings.TrimSpace(warning)
	if text == "" {
		return
	}
	for _, existing := range r.Warnings {
		if existing == text {
			return
		}
	}
	r.Warnings = append(r.Warnings, text)
}

// SetRowCount sets a named counter.
func (r *Report) SetRowCount(name string, value int) {
	if r.RowCounts == nil {
		r.RowCounts = make(map[string]int)
	}
	r.RowCounts[name] = value
}

// SetFreshness records the parsed source date and its lag.
func (r *Report) SetFreshness(maxDate time.Time, lagSeconds float64) {
	date := ISOTime(maxDate)
	lag := round3(lagSeconds)
	r.Freshness = Freshness{MaxDate: &date, LagSeconds: &lag}
}

// ClearFreshness marks freshness as indeterminate.
func (r *Report) ClearFreshness() {
	r.Freshness = Freshness{}
}

// Finalize stamps timing and computes the overall status: the worst check
// status, forced to FAIL on a non-zero exit code and raised to at least WARN
// when any warning was recorded.
func (r *Report) Finalize(finishedAt time.Time, exitCode int) {
	finished := ISOTime(finishedAt)
	r.RunFinishedAt = &finished
	r.LastRunTime = &finished

	duration := 0.0
	if !r.startedAt.IsZero() {
		duration = math.Max(0, finishedAt.Sub(r.startedAt).Seconds())
	}
	duration = round3(duration)
	r.DurationSeconds = &duration

	r.ensureRequiredChecks()

	status := StatusOK
	for _, check := range r.KeyChecks {
		status = Worst(status, check.Status)
	}
	if exitCode != 0 {
		status = StatusFail
	} else if len(r.Warnings) > 0 {
		status = Worst(status, StatusWarn)
	}
	r.Status = status
}

func (r *Report) ensureRequiredChecks() {
	for _, name := range RequiredChecks {
		if _, ok := r.CheckByName(name); !ok {
			r.KeyChecks = append(r.KeyChecks, KeyCheck{Name: name, Status: StatusWarn, Detail: notEvaluated})
		}
	}
}

// Fallback builds an all-FAIL report used when the primary report could not be produced.
func Fallback(startedAt, finishedAt time.Time, meta Meta, cause any) *Report {
	r := New(startedAt, meta)
	for i := range r.KeyChecks {
		r.KeyChecks[i].Status = StatusFail
		r.KeyChecks[i].Detail = "Runtime report could not be built."
	}
	for name := range r.Breakpoints {
		r.Breakpoints[name] = Breakpoint{Status: StatusFail, Detail: "Runtime report could not be built."}
	}
	r.Warn(fmt.Sprintf("Runtime report build failed: %v", cause))
	r.Finalize(finishedAt, 1)
	return r
}

// Write serializes the report as indented JSON and atomically replaces path.
func (r *Report) Write(path string) error {
	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runtime report: %w", err)
	}
	payload = append(payload, '\n')
	if err := fileutil.WriteAtomic(path, payload); err != nil {
		return fmt.Errorf("write runtime report: %w", err)
	}
	return nil
}

// Load reads a report previously written by Write.
func Load(path string) (*Report, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runtime report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode runtime report: %w", err)
	}
	return &r, nil
}

// NormalizeStatus upper-cases s and maps anything unknown to WARN.
func NormalizeStatus(s string) Status {
	switch status := Status(strings.ToUpper(strings.TrimSpace(s))); status {
	case StatusOK, StatusWarn, StatusFail:
		return status
	default:
		return StatusWarn
	}
}

// Worst returns the more severe of two statuses.
func Worst(a, b Status) Status {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func rank(s Status) int {
	switch NormalizeStatus(string(s)) {
	case StatusFail:
		return 2
	case StatusWarn:
		return 1
	default:
		return 0
	}
}

// ISOTime formats t as second-precision UTC with a Z suffix.
func ISOTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
