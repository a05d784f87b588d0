package storage

import (
	"context"
	"encoding/json"
	"sync"

	"taskboard-api/domain"
)

// EnqueueEvents publishes the given events to the downstream feed queue,
// wrapped in envelopes carrying the acting user. Sends run with bounded
// concurrency scaled from the CPU count; the first failure wins and the
// remaining sends are abandoned via context cancellation.
func (s *Storage) EnqueueEvents(ctx context.Context, userID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	concurrency := s.queueConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(events) {
		concurrency = len(events)
	}

	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for _, ev := range events {
		env := domain.EventEnvelope{UserID: userID, Event: ev}
		data, err := json.Marshal(env)
		if err != nil {
			fail(err)
			break
		}

		select {
		case sem <- struct{}{}:
		case <-sendCtx.Done():
		}
		if sendCtx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(msg string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := s.eventQueue.EnqueueMessage(sendCtx, msg, nil); err != nil {
				fail(err)
			}
		}(string(data))
	}

	wg.Wait()
	return firstErr
}
