package model_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
runner:
  path: /usr/local/bin/stabiom-runner
  args: ["--ansi-log", "false"]
runs:
  dir: /var/lib/stabiom/runs
api:
  listen: 127.0.0.1:9000
service:
  mode: timer
  poll_each: 250ms
  schedule:
    cron: "0 3 * * *"
    pipeline: assembly
    config: /etc/stabiom/nightly.yaml
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, "/usr/local/bin/stabiom-runner", cfg.Runner.Path)
	require.Equal(t, []string{"--ansi-log", "false"}, cfg.Runner.Args)
	require.Equal(t, "/var/lib/stabiom/runs", cfg.Runs.Dir)
	require.NotNil(t, cfg.API)
	require.Equal(t, "127.0.0.1:9000", cfg.API.Listen)
	require.Equal(t, model.ServiceModeTimer, cfg.Service.Mode)
	require.Equal(t, 250*time.Millisecond, cfg.Service.PollInterval())
	require.NotNil(t, cfg.Service.Schedule)
	require.Equal(t, "0 3 * * *", cfg.Service.Schedule.Cron)
	require.Equal(t, "assembly", cfg.Service.Schedule.Pipeline)
}

func TestLoadConfigDefaults(t *testing.T) {
	yml := `
version: 0
runner:
  path: stabiom-runner
runs:
  dir: runs
api: {}
service: {}
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, model.ServiceModeManual, cfg.Service.Mode)
	require.Equal(t, model.DefaultPollEach, cfg.Service.PollInterval())
	require.NotNil(t, cfg.API)
	require.Equal(t, "127.0.0.1:8871", cfg.API.Listen)
}

func TestLoadConfig_Fail(t *testing.T) {
	tests := []struct {
		scenario string
		yml      string
	}{
		{
			scenario: "missing runner path",
			yml: `
version: 0
runner: {}
runs:
  dir: runs
service:
  mode: manual
`,
		},
		{
			scenario: "unknown pipeline kind",
			yml: `
version: 0
runner:
  path: stabiom-runner
runs:
  dir: runs
service:
  mode: timer
  schedule:
    cron: "* * * * *"
    pipeline: alignment
    config: params.yaml
`,
		},
		{
			scenario: "bad mode",
			yml: `
version: 0
runner:
  path: stabiom-runner
runs:
  dir: runs
service:
  mode: automatic
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tt.yml))
			require.Error(t, err)
			require.NotEmpty(t, model.CueErrDetails(err))
		})
	}
}

func TestPollInterval(t *testing.T) {
	require.Equal(t, model.DefaultPollEach, model.Service{}.PollInterval())
	require.Equal(t, model.DefaultPollEach, model.Service{PollEach: "soon"}.PollInterval())
	require.Equal(t, model.DefaultPollEach, model.Service{PollEach: "-1s"}.PollInterval())
	require.Equal(t, time.Second, model.Service{PollEach: "1s"}.PollInterval())
}

func TestDefaultConfigRoundTrip(t *testing.T) {
	// the config written on first start must pass its own schema
	raw, err := yaml.Marshal(model.DefaultConfig())
	require.NoError(t, err)

	cfg, err := model.LoadConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, model.DefaultConfig(), cfg)
}
