/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mockUnit struct {
	name           string
	runningCounter *int32
	stop           chan bool
	stopWithError  bool

	startCalled               int
	stopCalled                int
	stopGracefullyCalled      int
	mustRegisterMetricsCalled int
	unregisterMetricsCalled   int
}

func newMockUnit(name string, runningCounter *int32, stopWithError bool) *mockUnit {
	return &mockUnit{
		name:           name,
		runningCounter: runningCounter,
		stop:           make(chan bool),
		stopWithError:  stopWithError,
	}
}

func (u *mockUnit) Start(fatalError chan<- error) {
	u.startCalled++
	atomic.AddInt32(u.runningCounter, 1)
	<-u.stop
}

func (u *mockUnit) Stop(gracefully bool) error {
	u.stopCalled++
	if gracefully {
		u.stopGracefullyCalled++
	}
	defer func() {
		u.stop <- true
		atomic.AddInt32(u.runningCounter, -1)
	}()
	if u.stopWithError {
		return fmt.Errorf("%s: internal error", u.name)
	}
	return nil
}

func (u *mockUnit) MustRegisterMetrics() {
	u.mustRegisterMetricsCalled++
}

func (u *mockUnit) UnregisterMetrics() {
	u.unregisterMetricsCalled++
}

type failingUnit struct {
	err        error
	stopCalled int32
}

func (u *failingUnit) Start(fatalError chan<- error) {
	fatalError <- u.err
}

func (u *failingUnit) Stop(gracefully bool) error {
	atomic.AddInt32(&u.stopCalled, 1)
	return nil
}

func waitTrue(trueFunc func() bool, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	for {
		if trueFunc() {
			return nil
		}
		select {
		case <-timer.C:
			return errors.New("waiting true timed out")
		default:
			time.Sleep(time.Millisecond * 10)
		}
	}
}

func makeCompositeUnit(n int, runningCounter *int32, stopWithErrorsFunc func(index int) bool) *CompositeUnit {
	if stopWithErrorsFunc == nil {
		stopWithErrorsFunc = func(_ int) bool { return false }
	}
	var units []Unit
	for i := 0; i < n; i++ {
		unit := newMockUnit(fmt.Sprintf("unit#%d", i), runningCounter, stopWithErrorsFunc(i))
		units = append(units, unit)
	}
	return NewCompositeUnit(units...)
}

func TestCompositeUnit_StartAndStop(t *testing.T) {
	t.Run("start w/o error and stop w/o error", func(t *testing.T) {
		const unitsNum = 100
		var runningCounter int32

		compositeUnit := makeCompositeUnit(unitsNum, &runningCounter, nil)

		// Start composite unit.
		startExit := make(chan bool)
		go func() {
			defer func() { startExit <- true }()
			compositeUnit.Start(make(chan error))
		}()

		// Wait until all units starts.
		err := waitTrue(func() bool { return atomic.LoadInt32(&runningCounter) == unitsNum }, time.Millisecond*unitsNum*10)
		require.NoError(t, err, "%d units should be started", unitsNum)

		// Stop group and check there is no running units.
		require.NoError(t, compositeUnit.Stop(true), "there should be no error in stop")
		require.Equal(t, 0, int(runningCounter), "there should be no running units")
		select {
		case <-time.NewTimer(time.Millisecond * unitsNum * 10).C:
			require.Fail(t, "waiting finish of Start() is timed out")
		case <-startExit:
		}
	})

	t.Run("start w/o error and stop with error", func(t *testing.T) {
		var err error

		const unitsStopWithErrorNum = 60
		const unitsStopWOErrorNum = 40
		const unitsNum = unitsStopWithErrorNum + unitsStopWOErrorNum

		var runningCounter int32

		compositeUnit := makeCompositeUnit(unitsNum, &runningCounter,
			func(index int) bool { return index < unitsStopWithErrorNum })

		// Start composite unit.
		startExit := make(chan bool)
		go func() {
			defer func() { startExit <- true }()
			compositeUnit.Start(make(chan error))
		}()

		// Wait until all units starts.
		err = waitTrue(func() bool { return atomic.LoadInt32(&runningCounter) == unitsNum }, time.Millisecond*unitsNum*10)
		require.NoError(t, err, "%d units should be started", unitsNum)

		// Stop group and check there is no running units.
		err = compositeUnit.Stop(true)
		require.Error(t, err, "there should be error in stop")

		sgErr := err.(*CompositeUnitError)
		require.NotNil(t, sgErr)
		require.Equal(t, unitsStopWithErrorNum, len(sgErr.UnitErrors),
			"%d units should be stopped with error", unitsStopWithErrorNum)
		require.Equal(t, 0, int(runningCounter), "there should be no running units")
		select {
		case <-time.NewTimer(time.Millisecond * unitsNum * 10).C:
			require.Fail(t, "waiting finish of Start() is timed out")
		case <-startExit:
		}
	})

	t.Run("fatal error on start stops the rest non-gracefully", func(t *testing.T) {
		var runningCounter int32
		okUnit := newMockUnit("unit#ok", &runningCounter, false)
		unitErr := errors.New("unit#bad: broken dependency")
		badUnit := &failingUnit{err: unitErr}

		compositeUnit := NewCompositeUnit(okUnit, badUnit)

		fatalError := make(chan error, 1)
		startExit := make(chan bool)
		go func() {
			defer func() { startExit <- true }()
			compositeUnit.Start(fatalError)
		}()

		var gotErr error
		select {
		case gotErr = <-fatalError:
		case <-time.NewTimer(time.Second * 5).C:
			require.Fail(t, "waiting fatal error is timed out")
		}
		select {
		case <-time.NewTimer(time.Second * 5).C:
			require.Fail(t, "waiting finish of Start() is timed out")
		case <-startExit:
		}

		cuErr := gotErr.(*CompositeUnitError)
		require.NotNil(t, cuErr)
		require.Contains(t, cuErr.UnitErrors, unitErr)
		require.Equal(t, 0, int(runningCounter), "there should be no running units")
		require.Equal(t, 1, okUnit.stopCalled, "healthy unit should be stopped")
		require.Equal(t, 0, okUnit.stopGracefullyCalled, "stop on fatal error should not be graceful")
	})
}
