package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// notifyJob carries the side effects of a completed mutation: notification
// log appends plus feed events. added holds the deduper keys recorded for
// this job so delivery failures can roll them back.
type notifyJob struct {
	userID string
	notes  []domain.Notification
	events []domain.Event
	added  []string
}

var (
	once           sync.Once
	jobs           chan notifyJob
	workerCount    int
	jobBuf         int
	deliverTimeout time.Duration
	handoffTimeout time.Duration
	bg             = context.Background()
	globalStore    Storage
	globalDeduper  Deduper
	globalLog      *log.Logger
	workerWG       sync.WaitGroup
)

// shutdownNotifier stops worker goroutines and clears shared state. It is
// intended for tests.
func shutdownNotifier() {
	if jobs != nil {
		close(jobs)
		jobs = nil
	}

	workerWG.Wait()

	globalStore = nil
	globalDeduper = nil
	globalLog = nil
	workerCount = 0
	jobBuf = 0
	deliverTimeout = 0
	handoffTimeout = 0
	once = sync.Once{}
	workerWG = sync.WaitGroup{}
}

func initNotifier(store Storage, deduper Deduper, log *log.Logger) {
	once.Do(func() {
		globalStore = store
		globalDeduper = deduper
		if log == nil {
			panic("Logger is not initialized")
		}
		globalLog = log

		workerCount = envInt("NOTIFY_WORKERS", 16)
		jobBuf = envInt("NOTIFY_BUFFER", 2048)
		deliverTimeout = envDur("NOTIFY_TIMEOUT", 60*time.Second)
		handoffTimeout = envDur("NOTIFY_HANDOFF_TIMEOUT", 15*time.Millisecond)

		jobs = make(chan notifyJob, jobBuf)
		for i := 0; i < workerCount; i++ {
			workerWG.Add(1)
			go worker(i, jobs)
		}
		globalLog.Infof("notifier started, workers: %d, buffer: %d, timeout: %v, handoff: %v", workerCount, jobBuf, deliverTimeout, handoffTimeout)
	})
}

func worker(id int, jobCh <-chan notifyJob) {
	defer workerWG.Done()
	for j := range jobCh {
		if err := deliverJob(j); err != nil {
			globalLog.Errorf("notify delivery failed, err: %v, user: %s, notes: %d, events: %d, worker: %d", err, j.userID, len(j.notes), len(j.events), id)
		}
	}
}

// deliverJob writes the notifications and publishes the events. On failure
// the deduper keys are rolled back so the caller may retry.
func deliverJob(j notifyJob) error {
	ctx, cancel := context.WithTimeout(bg, deliverTimeout)
	defer cancel()

	var err error
	if len(j.notes) > 0 {
		err = globalStore.AppendNotifications(ctx, j.notes)
	}
	if err == nil && len(j.events) > 0 {
		err = globalStore.EnqueueEvents(ctx, j.userID, j.events)
	}
	if err == nil {
		return nil
	}

	if globalDeduper != nil {
		for _, k := range j.added {
			if rerr := globalDeduper.Remove(bg, j.userID, k); rerr != nil {
				globalLog.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", rerr, k, j.userID)
			}
		}
	}
	return err
}

// notify fans out the side effects of a mutation. keys align one-to-one with
// notes: a key already recorded by the deduper drops its notification so
// handler retries do not double-deliver. Events always go out, keyed by
// their own IDs downstream. Delivery is asynchronous with an inline fallback
// when the buffer is saturated.
func notify(ctx context.Context, userID string, keys []string, notes []domain.Notification, events []domain.Event) {
	if globalStore == nil {
		return
	}

	var added []string
	if globalDeduper != nil && len(keys) > 0 {
		results, err := globalDeduper.AddMany(ctx, userID, keys)
		if err != nil {
			globalLog.Warnf("dedupe check failed, delivering anyway, err: %v, user: %s", err, userID)
		} else {
			kept := notes[:0]
			for i, isNew := range results {
				if !isNew {
					continue
				}
				added = append(added, keys[i])
				kept = append(kept, notes[i])
			}
			notes = kept
		}
	}

	if len(notes) == 0 && len(events) == 0 {
		return
	}

	job := notifyJob{userID: userID, notes: notes, events: events, added: added}
	if tryEnqueueNotify(job) {
		return
	}

	globalLog.Warn("notify buffer saturated; delivering inline")
	if err := deliverJob(job); err != nil {
		globalLog.Errorf("inline notify delivery failed, err: %v, user: %s", err, userID)
	}
}

func tryEnqueueNotify(job notifyJob) bool {
	if jobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan notifyJob, job notifyJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan notifyJob, job notifyJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
