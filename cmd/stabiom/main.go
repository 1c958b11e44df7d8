package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/api"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/history"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/log"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/run"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/service"
)

var (
	userConfigPath string // default config directory for this OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag

	flagPipeline string // value of `run --pipeline`
	flagParams   string // value of `run --params`
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "stabiom")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is stabiom.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	runCmd.Flags().StringVar(&flagPipeline, "pipeline", "", "pipeline kind to execute (assembly|profiling)")
	runCmd.Flags().StringVar(&flagParams, "params", "", "pipeline configuration file handed to the runner")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initStabiom

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("stabiom failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "stabiom",
	Short:        "Assembles pipeline configurations and supervises pipeline runs",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve runs the supervisor and the HTTP API for the configuration UI",
	RunE:  doServe,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run executes one pipeline and streams its logs to stdout",
	RunE:  doRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "status classifies past runs from their logs on disk",
	RunE:  doStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides the version of stabiom",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("stabiom: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:  %s\n", configPath)
		}
		fmt.Printf("stabiom: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:   %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("stabiom",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	if config.API == nil || (config.API.Enabled != nil && !*config.API.Enabled) {
		return fmt.Errorf("api is disabled in %s, nothing to serve", configPath)
	}

	supervisor, err := service.NewSupervisor(ctx, config)
	if err != nil {
		return err
	}
	server := api.NewServer(supervisor)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return supervisor.Do(ctx)
	})
	g.Go(func() error {
		return server.Serve(ctx, config.API.Listen)
	})
	return g.Wait()
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("stabiom",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	kind, err := model.ParsePipelineKind(flagPipeline)
	if err != nil {
		return err
	}
	if flagParams == "" {
		return fmt.Errorf("--params is required")
	}
	if _, err := os.Stat(flagParams); err != nil {
		return fmt.Errorf("pipeline configuration: %w", err)
	}

	id := model.NewRunID(time.Now())
	req := model.RunRequest{
		RunID:      id,
		Kind:       kind,
		ConfigPath: flagParams,
		RunDir:     filepath.Join(config.Runs.Dir, id),
	}
	if err := os.MkdirAll(req.RunDir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	ctrl := run.NewController(config.Runner, config.Service.PollInterval())
	if err := ctrl.Submit(req); err != nil {
		return err
	}
	if err := ctrl.Execute(ctx); err != nil {
		return err
	}
	fmt.Printf("run %s started\n", req.RunID)

	// stream the aggregated log until the run terminates; Ctrl-C
	// cancels the run through the context teardown
	next := 0
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	done := ctrl.Done()
	for {
		for _, l := range ctrl.Since(next) {
			next++
			fmt.Printf("%s [%s] %s\n", l.Time.Format("15:04:05"), l.Source, l.Text)
		}
		select {
		case <-done:
			for _, l := range ctrl.Since(next) {
				next++
				fmt.Printf("%s [%s] %s\n", l.Time.Format("15:04:05"), l.Source, l.Text)
			}
			state := ctrl.State()
			fmt.Printf("run %s %s after %s\n", req.RunID, state, ctrl.Elapsed().Round(time.Second))
			if state != model.StateCompleted {
				return fmt.Errorf("run %s: %s", req.RunID, state)
			}
			return nil
		case <-ticker.C:
		}
	}
}

func doStatus(cmd *cobra.Command, _ []string) error {
	entries, err := history.List(cmd.Context(), config.Runs.Dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("no runs under %s\n", config.Runs.Dir)
		return nil
	}
	for _, e := range entries {
		kind := string(e.Kind)
		if kind == "" {
			kind = "-"
		}
		fmt.Printf("%-24s %-10s %-12s %s\n",
			e.RunID, kind, e.Status, e.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func initStabiom(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("STABIOMCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "stabiom.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig()
		configPath = filepath.Join(userConfigPath, "stabiom.yaml")
		err := os.MkdirAll(filepath.Dir(configPath), 0755)
		if err != nil {
			return fmt.Errorf("creating directory %s: %w", filepath.Dir(configPath), err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", configPath, err)
		}
		defer func() {
			_ = f.Close()
		}()
		enc := yaml.NewEncoder(f)
		err = enc.Encode(config)
		if err != nil {
			return fmt.Errorf("storing configuration: %w", err)
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error(d)
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// environment beats the config file
	config = service.ApplyEnv(config)

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Service.Verbose = true
	}

	slog.SetDefault(log.New(config.Service.Verbose))

	slog.Debug("stabiom start", "configPath", configPath)
	slog.Debug("stabiom start", "config", config)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
