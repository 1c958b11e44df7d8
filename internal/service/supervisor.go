package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/run"
)

type Supervisor struct {
	cfg       model.Config
	ctrl      *run.Controller
	scheduler gocron.Scheduler
	trigger   chan model.RunRequest
}

func NewSupervisor(ctx context.Context, cfg model.Config) (*Supervisor, error) {
	supervisor := &Supervisor{
		cfg:     cfg,
		ctrl:    run.NewController(cfg.Runner, cfg.Service.PollInterval()),
		trigger: make(chan model.RunRequest, 1),
	}

	if cfg.Service.Mode == model.ServiceModeTimer {
		scheduler, err := newScheduler(ctx, cfg.Service.Schedule, supervisor.triggerScheduled)
		if err != nil {
			return nil, fmt.Errorf("timer mode failed: %w", err)
		}
		supervisor.scheduler = scheduler
	}

	return supervisor, nil
}

// Controller exposes the run state machine to the UI layer. All its
// read methods return snapshots and are safe for concurrent use.
func (s *Supervisor) Controller() *run.Controller {
	return s.ctrl
}

// RunsDir is the root directory holding one subdirectory per run.
func (s *Supervisor) RunsDir() string {
	return s.cfg.Runs.Dir
}

// NewRequest allocates a run id and its directory under the runs root.
func (s *Supervisor) NewRequest(kind model.PipelineKind, configPath string) (model.RunRequest, error) {
	req := model.RunRequest{
		RunID:      model.NewRunID(time.Now()),
		Kind:       kind,
		ConfigPath: configPath,
	}
	req.RunDir = filepath.Join(s.cfg.Runs.Dir, req.RunID)
	if err := req.Validate(); err != nil {
		return model.RunRequest{}, err
	}
	if err := os.MkdirAll(req.RunDir, 0o755); err != nil {
		return model.RunRequest{}, fmt.Errorf("creating run directory: %w", err)
	}
	return req, nil
}

// Trigger hands a request to the event loop. It ends immediately; a
// request arriving while a run is active is dropped with a warning.
func (s *Supervisor) Trigger(req model.RunRequest) {
	select {
	case s.trigger <- req:
	default:
		slog.Warn("trigger queue full, dropping request", "run_id", req.RunID)
	}
}

func (s *Supervisor) triggerScheduled() {
	sched := s.cfg.Service.Schedule
	kind, err := model.ParsePipelineKind(sched.Pipeline)
	if err != nil {
		slog.Error("scheduled run misconfigured", "error", err)
		return
	}
	req, err := s.NewRequest(kind, sched.Config)
	if err != nil {
		slog.Error("scheduled run request failed", "error", err)
		return
	}
	s.Trigger(req)
}

// Do runs the supervisor event loop until ctx is cancelled. It
// serializes triggers against the single Controller: a new run starts
// only when no run is active, reusing the controller after a Reset.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting the run supervisor")

	if s.scheduler != nil {
		s.scheduler.Start()
		defer func() {
			err := s.scheduler.Shutdown()
			if err != nil {
				slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			// the controller tears its own run down via the same ctx
			return nil
		case req := <-s.trigger:
			s.handleTrigger(ctx, req)
		}
	}
}

func (s *Supervisor) handleTrigger(ctx context.Context, req model.RunRequest) {
	state := s.ctrl.State()
	if state.Terminal() {
		if err := s.ctrl.Reset(); err != nil {
			slog.ErrorContext(ctx, "resetting controller failed", "error", err)
			return
		}
		state = s.ctrl.State()
	}
	if state != model.StateIdle {
		slog.WarnContext(ctx, "run already active, dropping trigger",
			"run_id", req.RunID, "state", state)
		return
	}

	if err := s.ctrl.Submit(req); err != nil {
		slog.ErrorContext(ctx, "submit failed", "run_id", req.RunID, "error", err)
		return
	}
	if err := s.ctrl.Execute(ctx); err != nil {
		slog.ErrorContext(ctx, "run launch failed", "run_id", req.RunID, "error", err)
	}
}

func newScheduler(ctx context.Context, schedp *model.Schedule, startFunc func()) (gocron.Scheduler, error) {
	if schedp == nil {
		return nil, fmt.Errorf("service.schedule is nil")
	}
	sched := *schedp

	if err := ParseCron(sched.Cron); err != nil {
		return nil, fmt.Errorf("parsing service.schedule.cron: %w", err)
	}
	job := gocron.CronJob(sched.Cron, false)
	slog.DebugContext(ctx, "successfully parsed", "cron", sched.Cron)

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		job,
		gocron.NewTask(startFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}
