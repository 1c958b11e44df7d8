package service

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
)

// ApplyEnv overlays STABIOM_* environment variables on a validated
// config, so deployments can point at a different runner binary or
// runs directory without editing the config file.
//
//	STABIOM_RUNNER_PATH, STABIOM_RUNS_DIR, STABIOM_API_LISTEN
func ApplyEnv(cfg model.Config) model.Config {
	v := viper.New()
	v.SetEnvPrefix("stabiom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("runner.path"); path != "" {
		cfg.Runner.Path = path
	}
	if dir := v.GetString("runs.dir"); dir != "" {
		cfg.Runs.Dir = dir
	}
	if listen := v.GetString("api.listen"); listen != "" && cfg.API != nil {
		cfg.API.Listen = listen
	}
	return cfg
}
