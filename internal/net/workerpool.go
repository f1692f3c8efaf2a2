package net

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// taskChanSize bounds the number of accepted connections waiting for a
// free worker before Accept backs up.
const taskChanSize = 100

// WorkerFunction handles one task (a net.Conn, in this gateway). A
// returned error is logged by the worker, which then takes the next
// task; it does not stop the pool.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed number of goroutines pulling tasks off a
// shared channel. It exists for the connection-handling front-end only
// — the matching engine's dispatcher (internal/engine) is deliberately
// single-worker and does not use this type, per §4.2/§5's one-logical-
// worker requirement.
type WorkerPool struct {
	n     int
	tasks chan any
	work  WorkerFunction
}

// NewWorkerPool returns a pool sized to run size concurrent workers.
func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

// AddTask enqueues a task for the next free worker.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup starts n workers on t; they run until t dies.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	pool.work = work
	log.Info().Int("workers", pool.n).Msg("starting connection worker pool")
	for i := 0; i < pool.n; i++ {
		t.Go(func() error { return pool.runWorker(t) })
	}
}

// runWorker repeatedly pulls a task and re-enters the loop; a worker
// never exits except on tomb death, so the pool stays at n goroutines.
func (pool *WorkerPool) runWorker(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := pool.work(t, task); err != nil {
				log.Error().Err(err).Msg("worker task failed")
			}
		}
	}
}
