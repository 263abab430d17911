// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package autofill

import (
	"slices"
	"sync"
	"time"
)

// Scheduler runs fn once after d. The returned cancel func prevents fn from
// running if it has not started yet; calling it more than once is harmless.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler schedules with [time.AfterFunc]. fn runs on its own goroutine.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)

	return func() { t.Stop() }
}

// ManualScheduler is a virtual clock. Scheduled functions only run from
// [ManualScheduler.Advance], on the caller's goroutine.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	at        time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

func (s *ManualScheduler) Schedule(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	task := &manualTask{at: s.now + max(d, 0), seq: s.seq, fn: fn}
	s.tasks = append(s.tasks, task)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		task.cancelled = true
	}
}

// Advance moves the clock forward by d and runs every task that falls due,
// in due-time then scheduling order. Tasks scheduled by a running task run
// in the same call if they are already due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	s.mu.Unlock()

	for {
		task := s.popDue()
		if task == nil {
			return
		}

		task.fn()
	}
}

// Pending returns the number of tasks that are scheduled and not cancelled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for _, task := range s.tasks {
		if !task.cancelled {
			n++
		}
	}

	return n
}

func (s *ManualScheduler) popDue() *manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = slices.DeleteFunc(s.tasks, func(t *manualTask) bool { return t.cancelled })

	next := -1

	for i, task := range s.tasks {
		if task.at > s.now {
			continue
		}

		if next < 0 || task.at < s.tasks[next].at || (task.at == s.tasks[next].at && task.seq < s.tasks[next].seq) {
			next = i
		}
	}

	if next < 0 {
		return nil
	}

	task := s.tasks[next]
	s.tasks = slices.Delete(s.tasks, next, next+1)

	return task
}
