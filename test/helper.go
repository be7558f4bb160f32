// Package test_test holds helpers shared by package tests.
package test_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// UTCTime creates instance of time in UTC timezone so tests do not depend on timezone of the machine running them
func UTCTime(sec int64) time.Time {
	return time.Unix(sec, 0).In(time.UTC)
}

// TestdataPath returns path of file in testdata directory next to the calling test file
func TestdataPath(t *testing.T, name string) string {
	t.Helper()
	return testdataPath(t, name, 2)
}

// LoadBytes loads file contents from testdata directory next to the calling test file
func LoadBytes(t *testing.T, name string) []byte {
	t.Helper()
	content, err := os.ReadFile(testdataPath(t, name, 2))
	require.NoError(t, err)
	return content
}

func testdataPath(t *testing.T, name string, callDepth int) string {
	_, callerFile, _, ok := runtime.Caller(callDepth)
	require.True(t, ok, "could not resolve caller file")
	return filepath.Join(filepath.Dir(callerFile), "testdata", name)
}
