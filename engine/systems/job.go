package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/tessera/engine/core"
)

// JobTask is a unit of work run on a JobSystem worker.
type JobTask struct {
	Run        func() error
	OnComplete func()
	OnFailure  func(err error)
	// OnCompletionCallback runs after OnComplete or OnFailure.
	OnCompletionCallback func()
}

// JobSystem is a fixed pool of workers draining a task queue.
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				if err := job.Run(); err != nil {
					core.LogDebug("job failed: %s", err)
					if job.OnFailure != nil {
						job.OnFailure(err)
					}
				} else if job.OnComplete != nil {
					job.OnComplete()
				}

				if job.OnCompletionCallback != nil {
					job.OnCompletionCallback()
				}
			}
		}()
	}
}

/**
 * @brief Shuts the job system down, waiting for queued jobs to finish.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() {
		close(js.jobQueue)
	})
	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution.
 * Blocks while the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) {
	js.jobQueue <- jt
}

// RunAll runs every function on the pool and waits for all of them. The
// returned slice holds the error of each function at its index.
func (js *JobSystem) RunAll(fns []func() error) []error {
	errs := make([]error, len(fns))
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for i, fn := range fns {
		i, fn := i, fn
		js.Submit(JobTask{
			Run:                  fn,
			OnFailure:            func(err error) { errs[i] = err },
			OnCompletionCallback: wg.Done,
		})
	}
	wg.Wait()
	return errs
}
