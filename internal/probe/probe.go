// Package probe emits ops/probe.json, a small, stable summary of the last run
// intended for external uptime and freshness monitors.
package probe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jackpotwatch/internal/fileutil"
	"jackpotwatch/internal/report"
)

// SchemaVersion identifies the probe document layout.
const SchemaVersion = "1.0"

// Probe is the document written to the probe file.
type Probe struct {
	SchemaVersion   string            `json:"schema_version"`
	Status          report.Status     `json:"status"`
	LastRunTime     *string           `json:"last_run_time"`
	DurationSeconds *float64          `json:"duration_seconds"`
	Freshness       Freshness         `json:"freshness"`
	RowCounts       map[string]int    `json:"row_counts"`
	SchemaHash      *string           `json:"schema_hash"`
	KeyChecks       []report.KeyCheck `json:"key_checks"`
	Warnings        []string          `json:"warnings"`
	ArtifactLinks   []ArtifactLink    `json:"artifact_links"`
	Meta            Meta              `json:"meta"`
}

// Freshness extends the report's freshness with a staleness verdict.
type Freshness struct {
	MaxDate    *string  `json:"max_date"`
	LagSeconds *float64 `json:"lag_seconds"`
	Stale      *bool    `json:"stale"`
}

// ArtifactLink points at an output of the run, such as a CI log.
type ArtifactLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Meta identifies the workflow run. Absent values are null.
type Meta struct {
	Repo     *string `json:"repo"`
	RunID    *string `json:"run_id"`
	RunURL   *string `json:"run_url"`
	Workflow *string `json:"workflow"`
	Job      *string `json:"job"`
	SHA      *string `json:"sha"`
}

// Options adjust how a report is projected into a probe.
type Options struct {
	// WorkloadOutcome is the CI step outcome; "failure" and "cancelled" force FAIL.
	WorkloadOutcome    string
	Artifacts          []string
	Warnings           []string
	FreshnessThreshold time.Duration
}

// Build projects rep into a probe document.
func Build(rep *report.Report, meta report.Meta, opts Options) Probe {
	status := report.NormalizeStatus(string(rep.Status))

	warnings := make([]string, 0, len(rep.Warnings)+len(opts.Warnings)+1)
	seen := make(map[string]struct{})
	addWarning := func(w string) {
		w = strings.TrimSpace(w)
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		warnings = append(warnings, w)
	}
	for _, w := range rep.Warnings {
		addWarning(w)
	}
	for _, w := range opts.Warnings {
		addWarning(w)
	}

	switch outcome := strings.ToLower(strings.TrimSpace(opts.WorkloadOutcome)); outcome {
	case "failure", "cancelled":
		status = report.StatusFail
		addWarning("workload outcome: " + outcome)
	}

	freshness := Freshness{MaxDate: rep.Freshness.MaxDate, LagSeconds: rep.Freshness.LagSeconds}
	if rep.Freshness.LagSeconds != nil {
		stale := *rep.Freshness.LagSeconds > opts.FreshnessThreshold.Seconds()
		freshness.Stale = &stale
	}

	checks := make([]report.KeyCheck, 0, len(rep.KeyChecks))
	for _, check := range rep.KeyChecks {
		check.Status = report.NormalizeStatus(string(check.Status))
		checks = append(checks, check)
	}

	rowCounts := make(map[string]int, len(rep.RowCounts))
	for name, value := range rep.RowCounts {
		rowCounts[name] = value
	}

	probeMeta := metaFrom(meta)
	return Probe{
		SchemaVersion:   SchemaVersion,
		Status:          status,
		LastRunTime:     rep.LastRunTime,
		DurationSeconds: rep.DurationSeconds,
		Freshness:       freshness,
		RowCounts:       rowCounts,
		SchemaHash:      nullable(rep.SchemaHash),
		KeyChecks:       checks,
		Warnings:        warnings,
		ArtifactLinks:   withRunLink(ParseArtifacts(opts.Artifacts), probeMeta),
		Meta:            probeMeta,
	}
}

// Fallback is the all-FAIL probe written when the report cannot be projected.
func Fallback(now time.Time, meta report.Meta, cause error) Probe {
	lastRun := report.ISOTime(now)
	probeMeta := metaFrom(meta)
	return Probe{
		SchemaVersion: SchemaVersion,
		Status:        report.StatusFail,
		LastRunTime:   &lastRun,
		RowCounts:     map[string]int{},
		KeyChecks:     []report.KeyCheck{},
		Warnings:      []string{fmt.Sprintf("Probe emitter failed: %v", cause)},
		ArtifactLinks: withRunLink(nil, probeMeta),
		Meta:          probeMeta,
	}
}

// Write serializes p as indented JSON and atomically replaces path.
func Write(path string, p Probe) error {
	payload, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal probe: %w", err)
	}
	if err := fileutil.WriteAtomic(path, append(payload, '\n')); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	return nil
}

// ParseArtifacts turns "label=url" or bare "url" arguments into links. Blank URLs are dropped.
func ParseArtifacts(values []string) []ArtifactLink {
	links := make([]ArtifactLink, 0, len(values))
	for _, item := range values {
		label, url := "artifact", strings.TrimSpace(item)
		if l, u, ok := strings.Cut(item, "="); ok {
			url = strings.TrimSpace(u)
			if l = strings.TrimSpace(l); l != "" {
				label = l
			}
		}
		if url != "" {
			links = append(links, ArtifactLink{Label: label, URL: url})
		}
	}
	return links
}

func withRunLink(links []ArtifactLink, meta Meta) []ArtifactLink {
	if links == nil {
		links = []ArtifactLink{}
	}
	if meta.RunURL == nil {
		return links
	}
	for _, link := range links {
		if link.URL == *meta.RunURL {
			return links
		}
	}
	return append(links, ArtifactLink{Label: "workflow_run", URL: *meta.RunURL})
}

func metaFrom(m report.Meta) Meta {
	return Meta{
		Repo:     nullable(m.Repo),
		RunID:    nullable(m.RunID),
		RunURL:   nullable(m.RunURL),
		Workflow: nullable(m.Workflow),
		Job:      nullable(m.Job),
		SHA:      nullable(m.SHA),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
