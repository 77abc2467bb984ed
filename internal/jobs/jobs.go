package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"flowdesk/internal/model"
	"flowdesk/internal/service"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types
const (
	TypeAutomationRun = "automation:run"
	TypeDueDateScan   = "duedate:scan"
	TypeDigestFlush   = "digest:flush"
)

// JobServer runs background work: automation for committed
// transitions, the due-date/SLA scan tick, and digest flushes.
type JobServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	client    *asynq.Client
	engine    *service.Engine
	scanner   *service.Scanner
	notifier  *service.Notifier
	log       *zap.Logger
}

// Schedules carries the cron specs for the periodic jobs.
type Schedules struct {
	DueDateScan  string
	DailyDigest  string
	WeeklyDigest string
}

func NewJobServer(redisAddr string, engine *service.Engine, scanner *service.Scanner, notifier *service.Notifier, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)
	scheduler := asynq.NewScheduler(redisOpt, nil)
	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server:    server,
		scheduler: scheduler,
		client:    client,
		engine:    engine,
		scanner:   scanner,
		notifier:  notifier,
		log:       log,
	}, client
}

func (js *JobServer) Start(schedules Schedules) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAutomationRun, js.handleAutomationRun)
	mux.HandleFunc(TypeDueDateScan, js.handleDueDateScan)
	mux.HandleFunc(TypeDigestFlush, js.handleDigestFlush)

	if _, err := js.scheduler.Register(schedules.DueDateScan,
		asynq.NewTask(TypeDueDateScan, nil), asynq.Queue("low")); err != nil {
		return fmt.Errorf("failed to register due-date scan: %w", err)
	}
	if _, err := js.scheduler.Register(schedules.DailyDigest,
		asynq.NewTask(TypeDigestFlush, []byte(model.DigestDaily)), asynq.Queue("low")); err != nil {
		return fmt.Errorf("failed to register daily digest: %w", err)
	}
	if _, err := js.scheduler.Register(schedules.WeeklyDigest,
		asynq.NewTask(TypeDigestFlush, []byte(model.DigestWeekly)), asynq.Queue("low")); err != nil {
		return fmt.Errorf("failed to register weekly digest: %w", err)
	}

	if err := js.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return js.server.Start(mux)
}

func (js *JobServer) Stop() {
	js.scheduler.Shutdown()
	js.server.Shutdown()
	js.client.Close()
}

// Job handlers

func (js *JobServer) handleAutomationRun(ctx context.Context, t *asynq.Task) error {
	var event model.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("failed to decode automation event: %w", err)
	}
	if err := js.engine.HandleEvent(ctx, event); err != nil {
		return fmt.Errorf("automation failed: %w", err)
	}
	js.log.Info("Automation run completed",
		zap.String("type", string(event.Type)),
		zap.String("request_id", event.RequestID),
	)
	return nil
}

func (js *JobServer) handleDueDateScan(ctx context.Context, t *asynq.Task) error {
	if err := js.scanner.Scan(ctx); err != nil {
		return fmt.Errorf("due-date scan failed: %w", err)
	}
	return nil
}

func (js *JobServer) handleDigestFlush(ctx context.Context, t *asynq.Task) error {
	mode := model.DigestMode(t.Payload())
	if mode != model.DigestDaily && mode != model.DigestWeekly {
		return fmt.Errorf("unknown digest mode %q", mode)
	}
	if err := js.notifier.FlushDigests(ctx, mode); err != nil {
		return fmt.Errorf("digest flush failed: %w", err)
	}
	js.log.Info("Digest flushed", zap.String("mode", string(mode)))
	return nil
}

// Dispatcher enqueues automation runs so a committed transition never
// waits on webhook or email latency. Implements
// service.AutomationDispatcher.
type Dispatcher struct {
	client *asynq.Client
}

func NewDispatcher(client *asynq.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = d.client.EnqueueContext(ctx, asynq.NewTask(TypeAutomationRun, payload), asynq.Queue("default"))
	if err != nil {
		return fmt.Errorf("failed to enqueue automation run: %w", err)
	}
	return nil
}
