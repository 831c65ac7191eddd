package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnRunsBody(t *testing.T) {
	s := New(WithWorkers(2))
	defer s.Stop()

	var ran atomic.Bool
	done := make(chan struct{})

	s.Spawn(func(p *Process) {
		ran.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process body never ran")
	}

	require.True(t, ran.Load())
}

func TestYieldCurrentRequeues(t *testing.T) {
	s := New(WithWorkers(1))
	defer s.Stop()

	var yields atomic.Int32
	done := make(chan struct{})

	s.Spawn(func(p *Process) {
		for i := 0; i < 5; i++ {
			p.YieldCurrent()
			yields.Add(1)
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process never completed its yield loop")
	}

	require.EqualValues(t, 5, yields.Load())
}

func TestWaitAndWake(t *testing.T) {
	s := New(WithWorkers(2))
	defer s.Stop()

	woke := make(chan struct{})

	p := s.Spawn(func(p *Process) {
		p.Suspend()
		close(woke)
	})

	// Give the worker a moment to swap the process in and reach Waiting.
	require.Eventually(t, func() bool {
		return p.State() == StateWaiting
	}, time.Second, time.Millisecond)

	s.Wake(p.Pid)

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("process never woke")
	}
}

func TestReductionCheckInvokesGCHook(t *testing.T) {
	s := New(WithWorkers(1))
	defer s.Stop()

	var hookCalls atomic.Int32
	s.SetGCHook(func(p *Process) {
		hookCalls.Add(1)
	})

	done := make(chan struct{})
	p := s.Spawn(func(p *Process) {
		p.reduction = 1
		p.ReductionCheck()
		close(done)
	})
	_ = p

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("process never completed")
	}

	require.EqualValues(t, 1, hookCalls.Load())
}

func TestWorkerCountDefaultsToGOMAXPROCS(t *testing.T) {
	s := New()
	defer s.Stop()

	require.GreaterOrEqual(t, s.WorkerCount(), 1)
}

func TestStackBaseIsStableAndDistinct(t *testing.T) {
	s := New(WithWorkers(2))
	defer s.Stop()

	var base1, base2 uintptr
	done := make(chan struct{}, 2)

	p1 := s.Spawn(func(p *Process) { done <- struct{}{} })
	p2 := s.Spawn(func(p *Process) { done <- struct{}{} })

	<-done
	<-done

	base1 = p1.StackBase
	base2 = p2.StackBase

	require.NotZero(t, base1)
	require.NotZero(t, base2)
	require.NotEqual(t, base1, base2)
}
