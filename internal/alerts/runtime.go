package alerts

import (
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/lexhub/internal/logging"
	"github.com/sudo-init-do/lexhub/internal/metrics"
)

// Runtime owns the asynq client and worker server for one process.
type Runtime struct {
	Dispatcher *Dispatcher

	client *asynq.Client
	server *asynq.Server
	log    *logging.Logger
}

// Start connects to Redis at addr, starts the worker and returns a runtime
// whose Dispatcher feeds it.
func Start(addr string, p *Processor, log *logging.Logger, m *metrics.Metrics) (*Runtime, error) {
	opts := asynq.RedisClientOpt{Addr: addr}
	client := asynq.NewClient(opts)

	mux := asynq.NewServeMux()
	p.Register(mux)

	server := asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueNotifications: 10,
			QueueBookkeeping:   5,
		},
		Logger: asynqLogger{log.With("component", "asynq")},
	})
	if err := server.Start(mux); err != nil {
		_ = client.Close()
		return nil, err
	}
	log.Info("alert queue started", "addr", addr)

	return &Runtime{
		Dispatcher: NewDispatcher(client, log.With("component", "dispatcher"), m),
		client:     client,
		server:     server,
		log:        log,
	}, nil
}

// Close stops the worker and releases the client.
func (r *Runtime) Close() {
	r.server.Shutdown()
	if err := r.client.Close(); err != nil {
		r.log.Warn("asynq client close failed", "err", err)
	}
}

// asynqLogger adapts Logger to asynq.Logger.
type asynqLogger struct {
	l *logging.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(sprint(args)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(sprint(args)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(sprint(args)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(sprint(args)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Error(sprint(args)) }

func sprint(args []any) string {
	return strings.TrimSpace(fmt.Sprintln(args...))
}
