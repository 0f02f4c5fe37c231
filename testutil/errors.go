/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stretchr/testify/require"
)

// RequireNoErrorInChannel asserts that the buffered channel contains no error.
// It doesn't block: an empty channel passes the check.
func RequireNoErrorInChannel(t require.TestingT, c <-chan error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	select {
	case err := <-c:
		require.NoError(t, err, msgAndArgs...)
	default:
	}
}

// RequireErrorIsAny asserts that at least one of the errors in err's chain matches at least one target.
// This is a wrapper for errors.Is.
func RequireErrorIsAny(t require.TestingT, err error, targets []error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return
		}
	}
	wantTexts := make([]string, 0, len(targets))
	for _, target := range targets {
		wantTexts = append(wantTexts, fmt.Sprintf("%q", target.Error()))
	}
	require.FailNow(t, fmt.Sprintf("At least one target error should be in err chain:\n"+
		"expected: [%s]\n"+
		"in chain: %s", strings.Join(wantTexts, "; "), buildErrorChainString(err),
	), msgAndArgs...)
}

func buildErrorChainString(err error) string {
	if err == nil {
		return ""
	}
	var chain strings.Builder
	fmt.Fprintf(&chain, "%q", err.Error())
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&chain, "\n\t%q", e.Error())
	}
	return chain.String()
}
