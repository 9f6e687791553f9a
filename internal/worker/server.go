package worker

import (
	"context"
	"errors"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/metrics"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
	"github.com/s-renren/Fireworks-Display-Online/internal/tasks"
)

// WorkerServer wraps the asynq server that fans out room events and refreshes occupancy.
type WorkerServer struct {
	server    *asynq.Server
	log       *logrus.Entry
	publisher repository.RoomEventPublisher
	rooms     RoomLister
	metrics   *metrics.Metrics
}

// NewWorkerServer creates a WorkerServer. concurrency defaults to 10 when not positive.
func NewWorkerServer(redisOpt asynq.RedisClientOpt, concurrency int, publisher repository.RoomEventPublisher, rooms RoomLister, m *metrics.Metrics, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.QueueCritical: 6,
				tasks.QueueDefault:  3,
				tasks.QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				queue, _ := asynq.GetQueueName(ctx)
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"queue":     queue,
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server:    server,
		log:       logEntry,
		publisher: publisher,
		rooms:     rooms,
		metrics:   m,
	}
}

// Mux builds the task routing table.
func (ws *WorkerServer) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeRoomEvent, NewRoomEventHandler(ws.publisher, ws.metrics))
	mux.Handle(tasks.TypeRoomOccupancy, NewOccupancyHandler(ws.rooms, ws.metrics))
	return mux
}

// Start runs the worker server. Call it in its own goroutine.
func (ws *WorkerServer) Start() {
	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(ws.Mux()); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		} else {
			ws.log.Info("Worker server stopped.")
		}
	}
}

// Shutdown stops the worker server gracefully.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
