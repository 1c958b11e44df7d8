package model

import (
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Enum helpers (optional).
const (
	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	DefaultPollEach = 400 * time.Millisecond
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int     `json:"version" yaml:"version"` // fixed 0 for now
	Runner  Runner  `json:"runner" yaml:"runner"`
	Runs    Runs    `json:"runs" yaml:"runs"`
	API     *API    `json:"api,omitempty" yaml:"api,omitempty"`
	Service Service `json:"service" yaml:"service"`
}

// Runner locates the external pipeline runner binary. The runner is an
// opaque program invoked as `<path> <args...> --config <file>` with
// Workdir as its working directory.
type Runner struct {
	Path    string   `json:"path" yaml:"path"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Workdir string   `json:"workdir,omitempty" yaml:"workdir,omitempty"` // empty => current directory
}

// Runs points to the root directory holding one subdirectory per run.
type Runs struct {
	Dir string `json:"dir" yaml:"dir"`
}

// API configures the HTTP surface consumed by the configuration UI.
type API struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Listen  string `json:"listen" yaml:"listen"`
}

// Service configures run supervision. Manual mode executes runs only
// on request; timer mode additionally submits a run per Schedule.
type Service struct {
	Mode     string    `json:"mode" yaml:"mode"` // "manual" | "timer"
	Verbose  bool      `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	PollEach string    `json:"poll_each,omitempty" yaml:"poll_each,omitempty"` // e.g. "400ms"
	Schedule *Schedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// Schedule submits a run on a cron expression in timer mode.
type Schedule struct {
	Cron     string `json:"cron" yaml:"cron"`
	Pipeline string `json:"pipeline" yaml:"pipeline"`
	Config   string `json:"config" yaml:"config"`
}

// PollInterval returns the configured poll cadence, or the default
// when unset or unparsable.
func (s Service) PollInterval() time.Duration {
	if s.PollEach == "" {
		return DefaultPollEach
	}
	d, err := time.ParseDuration(s.PollEach)
	if err != nil || d <= 0 {
		return DefaultPollEach
	}
	return d
}

// LoadConfig validates YAML from r against the CUE schema and decodes
// it into Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}

// DefaultConfig is written to disk on first start when no config file
// exists yet.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Runner: Runner{
			Path: "stabiom-runner",
		},
		Runs: Runs{
			Dir: "runs",
		},
		API: &API{
			Listen: "127.0.0.1:8871",
		},
		Service: Service{
			Mode: ServiceModeManual,
		},
	}
}
