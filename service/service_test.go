/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-eventkit/log/logtest"
)

func TestService_Start(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	var runningCounter int32
	pipelineUnit := newMockUnit("pipeline", &runningCounter, false)
	service := New(logRecorder, pipelineUnit)
	go func() {
		require.NoError(t, service.Start())
	}()
	require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&runningCounter) == 1 }, time.Second*3))
	require.Equal(t, 1, pipelineUnit.mustRegisterMetricsCalled)
	require.Equal(t, 1, pipelineUnit.startCalled)

	service.Signals <- os.Interrupt // Sending SIGINT signal to the service.

	require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&runningCounter) == 0 }, time.Second*3))
	require.Equal(t, 1, pipelineUnit.unregisterMetricsCalled)
	require.Equal(t, 1, pipelineUnit.stopCalled)
	require.Equal(t, 1, pipelineUnit.stopGracefullyCalled)
}

func TestService_StartContext(t *testing.T) {
	ctx, ctxCancel := context.WithCancel(context.Background())

	logRecorder := logtest.NewRecorder()
	var runningCounter int32
	pipelineUnit := newMockUnit("pipeline", &runningCounter, false)
	service := New(logRecorder, pipelineUnit)
	go func() {
		require.NoError(t, service.StartContext(ctx))
	}()
	require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&runningCounter) == 1 }, time.Second*3))

	ctxCancel()

	require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&runningCounter) == 0 }, time.Second*3))
	require.Equal(t, 1, pipelineUnit.stopGracefullyCalled)
}

func TestService_StartFatalError(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	unitErr := errors.New("delivery queue wedged")
	service := New(logRecorder, &failingUnit{err: unitErr})

	err := service.Start()
	require.ErrorIs(t, err, unitErr)

	_, found := logRecorder.FindEntry("service fatal error")
	require.True(t, found)
}
