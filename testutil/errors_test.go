/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequireErrorIsAny(t *testing.T) {
	targetErrs := []error{
		errors.New("queue is closed"),
		errors.New("sink unavailable"),
		errors.New("circuit breaker is open"),
	}

	mockT := &MockT{}

	RequireErrorIsAny(mockT, fmt.Errorf("deliver batch: %w", targetErrs[1]), targetErrs)
	require.False(t, mockT.Failed)

	RequireErrorIsAny(mockT, fmt.Errorf("deliver batch: %w", errors.New("malformed event")), targetErrs)
	require.True(t, mockT.Failed)

	RequireErrorIsAny(mockT, nil, targetErrs)
	require.True(t, mockT.Failed)
}

func TestRequireNoErrorInChannel(t *testing.T) {
	mockT := &MockT{}
	fatalErr := make(chan error, 1)

	RequireNoErrorInChannel(mockT, fatalErr)
	require.False(t, mockT.Failed)

	fatalErr <- nil
	RequireNoErrorInChannel(mockT, fatalErr)
	require.False(t, mockT.Failed)

	fatalErr <- errors.New("delivery worker crashed")
	RequireNoErrorInChannel(mockT, fatalErr)
	require.True(t, mockT.Failed)
}

func TestBuildErrorChainString(t *testing.T) {
	require.Equal(t, "", buildErrorChainString(nil))

	rootErr := errors.New("connection refused")
	wrapped := fmt.Errorf("flush batch: %w", rootErr)
	require.Equal(t, "\"flush batch: connection refused\"\n\t\"connection refused\"", buildErrorChainString(wrapped))
}
