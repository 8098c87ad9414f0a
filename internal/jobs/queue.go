package jobs

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

// finished jobs kept in memory and in the store before the oldest are pruned
const retainJobs = 1000

// Executor runs one job. The context is cancelled when the job is cancelled
// or the queue stops.
type Executor func(ctx context.Context, job *TranslationJob) error

// Queue runs video jobs on a fixed set of workers. At most one pending or
// running job exists per dedupe key.
type Queue struct {
	workers int
	store   Store

	mu      sync.RWMutex
	jobs    map[string]*TranslationJob
	active  map[string]string // dedupe key -> job id
	cancels map[string]context.CancelFunc
	started bool

	ready    chan string
	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewQueue(workers int, store Store) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		workers: max(workers, 1),
		store:   store,
		jobs:    make(map[string]*TranslationJob),
		active:  make(map[string]string),
		cancels: make(map[string]context.CancelFunc),
		ready:   make(chan string, 1024),
		ctx:     ctx,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}
	q.restore(context.Background())
	return q
}

// Enqueue adds a job unless a pending or running job holds the same dedupe
// key, in which case that job is returned with created=false.
func (q *Queue) Enqueue(req EnqueueRequest) (*TranslationJob, bool) {
	q.mu.Lock()
	if existing := q.activeLocked(req.DedupeKey); existing != nil {
		q.mu.Unlock()
		return existing, false
	}

	now := time.Now()
	job := &TranslationJob{
		ID:        uuid.NewString(),
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[job.ID] = job
	if req.DedupeKey != "" {
		q.active[req.DedupeKey] = job.ID
	}
	started := q.started
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persist(snapshot)
	if started {
		q.schedule(job.ID)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*TranslationJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	return cloneJob(job), ok
}

// Active returns the pending or running job holding a dedupe key
func (q *Queue) Active(dedupeKey string) (*TranslationJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job := q.activeLocked(dedupeKey)
	return job, job != nil
}

func (q *Queue) activeLocked(dedupeKey string) *TranslationJob {
	if dedupeKey == "" {
		return nil
	}
	id, ok := q.active[dedupeKey]
	if !ok {
		return nil
	}
	job, ok := q.jobs[id]
	if !ok {
		delete(q.active, dedupeKey)
		return nil
	}
	return cloneJob(job)
}

// List returns all known jobs, oldest first
func (q *Queue) List() []*TranslationJob {
	q.mu.RLock()
	ret := make([]*TranslationJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	q.mu.RUnlock()

	slices.SortFunc(ret, byCreation)
	return ret
}

func byCreation(a, b *TranslationJob) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
}

// Cancel stops a pending job before it runs, or cancels the context of a
// running one. It reports false for unknown or finished jobs.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status.Terminal() {
		q.mu.Unlock()
		return false
	}
	if job.Status == StatusRunning {
		cancel := q.cancels[id]
		q.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return true
	}

	q.setStatusLocked(job, StatusCancelled, nil)
	snapshot := cloneJob(job)
	q.mu.Unlock()
	q.persist(snapshot)
	return true
}

// Start launches the workers and schedules every pending job, oldest first.
// Calling it again has no effect.
func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	var pending []*TranslationJob
	for _, job := range q.jobs {
		if job.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	slices.SortFunc(pending, byCreation)
	q.mu.Unlock()

	for _, job := range pending {
		q.schedule(job.ID)
	}
	for range q.workers {
		q.wg.Add(1)
		go q.work(exec)
	}
}

// Stop cancels running jobs and waits for the workers to exit. Jobs
// interrupted this way keep their running status and are resumed by the
// next queue created on the same store.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.cancel()
		q.wg.Wait()
	})
}

func (q *Queue) work(exec Executor) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.ready:
			job, ctx, ok := q.begin(id)
			if !ok {
				continue
			}
			err := exec(ctx, job)
			cancelled := ctx.Err() != nil
			q.release(id)

			switch {
			case err != nil && cancelled && q.stopping():
				return
			case err != nil && cancelled:
				q.finish(id, StatusCancelled, nil)
			case err != nil:
				q.finish(id, StatusFailed, err)
			default:
				q.finish(id, StatusSuccess, nil)
			}
		}
	}
}

func (q *Queue) stopping() bool {
	select {
	case <-q.stopCh:
		return true
	default:
		return false
	}
}

func (q *Queue) schedule(id string) {
	select {
	case q.ready <- id:
	default:
		go func() { q.ready <- id }()
	}
}

// begin moves a pending job to running and hands out its context
func (q *Queue) begin(id string) (*TranslationJob, context.Context, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusPending {
		q.mu.Unlock()
		return nil, nil, false
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	ctx, cancel := context.WithCancel(q.ctx)
	q.cancels[id] = cancel
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persist(snapshot)
	return snapshot, ctx, true
}

func (q *Queue) release(id string) {
	q.mu.Lock()
	cancel := q.cancels[id]
	delete(q.cancels, id)
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (q *Queue) finish(id string, status Status, err error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	q.setStatusLocked(job, status, err)
	pruned := q.pruneLocked()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.persist(snapshot)
	for _, id := range pruned {
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s: %v", id, err)
		}
	}
}

// setStatusLocked records a final status and frees the dedupe key
func (q *Queue) setStatusLocked(job *TranslationJob, status Status, err error) {
	job.Status = status
	job.Error = ""
	if err != nil {
		job.Error = err.Error()
	}
	job.UpdatedAt = time.Now()
	if job.DedupeKey != "" && q.active[job.DedupeKey] == job.ID {
		delete(q.active, job.DedupeKey)
	}
}

// pruneLocked drops the oldest finished jobs beyond the retention limit and
// returns their ids when they also need deleting from the store
func (q *Queue) pruneLocked() []string {
	excess := len(q.jobs) - retainJobs
	if excess <= 0 {
		return nil
	}
	var finished []*TranslationJob
	for _, job := range q.jobs {
		if job.Status.Terminal() {
			finished = append(finished, job)
		}
	}
	slices.SortFunc(finished, func(a, b *TranslationJob) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})

	var pruned []string
	for _, job := range finished[:min(excess, len(finished))] {
		delete(q.jobs, job.ID)
		pruned = append(pruned, job.ID)
	}
	if q.store == nil {
		return nil
	}
	return pruned
}

// restore loads persisted jobs. Jobs that were running when the previous
// process stopped go back to pending.
func (q *Queue) restore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	var resumed []*TranslationJob
	q.mu.Lock()
	for _, job := range loaded {
		if job == nil || job.ID == "" {
			continue
		}
		job = cloneJob(job)
		if job.Status == StatusRunning {
			job.Status = StatusPending
			job.UpdatedAt = time.Now()
			resumed = append(resumed, cloneJob(job))
		}
		q.jobs[job.ID] = job
		if job.Status == StatusPending && job.DedupeKey != "" {
			q.active[job.DedupeKey] = job.ID
		}
	}
	q.mu.Unlock()

	if len(resumed) > 0 {
		log.Info("Resuming %d interrupted jobs", len(resumed))
	}
	for _, job := range resumed {
		q.persist(job)
	}
}

func (q *Queue) persist(job *TranslationJob) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func cloneJob(job *TranslationJob) *TranslationJob {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
