package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/blobstore"
	"github.com/marginalia-app/marginalia/pkg/books"
	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/notifications"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Maintenance tasks run on every tick, in this order.
const (
	TaskExpiredOTPs = "expired_otps"
	TaskOrphanBlobs = "orphan_blobs"
)

var processID = randStringBytes(8)

// TaskFunc runs one maintenance task and reports how many rows it removed.
type TaskFunc func(ctx context.Context) (int, error)

type Worker struct {
	config *config.Config
	log    logger.Logger

	taskNames    []string
	processFuncs map[string]TaskFunc

	queue            chan string
	shutdown         chan struct{}
	doneScheduling   chan struct{}
	doneProcessing   chan struct{}
	onTaskCompletion func(name string, removed int, err error)
}

func New(cfg *config.Config, db *bun.DB) *Worker {
	authService := auth.NewService(db, cfg, auth.LogSender{})
	bookService := books.NewService(db, blobstore.New(db, cfg), notifications.NewService(db))

	w := &Worker{
		config: cfg,
		log:    logger.New(),

		queue:          make(chan string, 1),
		shutdown:       make(chan struct{}),
		doneScheduling: make(chan struct{}),
		doneProcessing: make(chan struct{}),
	}

	w.register(TaskExpiredOTPs, authService.CleanupExpiredOTPs)
	w.register(TaskOrphanBlobs, bookService.SweepOrphanBlobs)

	return w
}

func (w *Worker) register(name string, fn TaskFunc) {
	if w.processFuncs == nil {
		w.processFuncs = map[string]TaskFunc{}
	}
	w.taskNames = append(w.taskNames, name)
	w.processFuncs[name] = fn
}

func (w *Worker) Start() {
	go w.scheduleTasks()
	go w.processTasks()
}

func (w *Worker) scheduleTasks() {
	interval := w.config.CleanupInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more tasks to the queue.
			w.doneScheduling <- struct{}{}
			return
		case <-timer.C:
			for _, name := range w.taskNames {
				select {
				case w.queue <- name:
				case <-w.shutdown:
					w.doneScheduling <- struct{}{}
					return
				}
			}
			timer.Reset(interval)
		}
	}
}

func (w *Worker) processTasks() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case name := <-w.queue:
			w.runTask(name)
		}
	}
}

func (w *Worker) runTask(name string) {
	// Prep the context to be passed down to the task.
	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"task": name, "process_id": processID})
	ctx := log.WithContext(context.Background())

	fn, ok := w.processFuncs[name]
	if !ok {
		log.Error("can't find process function for task")
		return
	}

	start := time.Now()
	removed, err := fn(ctx)
	if err != nil {
		log.Err(err).Error("task error")
	} else if removed > 0 {
		log.Info("task finished", logger.Data{"removed": removed, "duration": time.Since(start).String()})
	}

	if w.onTaskCompletion != nil {
		w.onTaskCompletion(name, removed, err)
	}
}

// Shutdown stops scheduling new tasks and waits for the running one to
// finish.
func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneScheduling
	<-w.doneProcessing
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
