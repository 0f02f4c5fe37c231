/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

// MockT implements require.TestingT recording failures instead of failing,
// so the assertion helpers themselves can be tested.
type MockT struct {
	Failed bool
	Format string
	Args   []interface{}
}

// FailNow marks the test as failed. Unlike testing.T it does not stop the calling goroutine.
func (t *MockT) FailNow() {
	t.Failed = true
}

// Errorf records the last reported failure message.
func (t *MockT) Errorf(format string, args ...interface{}) {
	t.Format = format
	t.Args = args
}
