package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"jackpotwatch/internal/version"
)

// Meta identifies the process and, under GitHub Actions, the workflow run
// that produced a report.
type Meta struct {
	Hostname string `json:"hostname,omitempty"`
	Version  string `json:"version,omitempty"`
	Commit   string `json:"commit,omitempty"`

	Repo     string `json:"repo" env:"GITHUB_REPOSITORY"`
	RunID    string `json:"run_id" env:"GITHUB_RUN_ID"`
	RunURL   string `json:"run_url"`
	Workflow string `json:"workflow" env:"GITHUB_WORKFLOW"`
	Job      string `json:"job" env:"GITHUB_JOB"`
	SHA      string `json:"sha" env:"GITHUB_SHA"`

	ServerURL string `json:"-" env:"GITHUB_SERVER_URL" envDefault:"https://github.com"`
}

// MetaFromEnv collects run metadata from the environment.
func MetaFromEnv() Meta {
	meta, err := env.ParseAs[Meta]()
	if err != nil {
		meta = Meta{}
	}
	meta.Hostname, _ = os.Hostname()
	meta.Version = version.Version
	meta.Commit = version.Commit
	meta.RunURL = meta.runURL()
	return meta
}

func (m Meta) runURL() string {
	if m.Repo == "" || m.RunID == "" {
		return ""
	}
	server := strings.TrimRight(m.ServerURL, "/")
	if server == "" {
		server = "https://github.com"
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", server, m.Repo, m.RunID)
}
