// File: main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-taint/cmd"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestRun_ExitCodes(t *testing.T) {
	t.Cleanup(resetMocks)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"failure", errors.New("boom"), 1},
		{"cancelled", fmt.Errorf("analysis interrupted: %w", context.Canceled), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execute = func(context.Context) error { return tt.err }
			assert.Equal(t, tt.want, run(context.Background()))
		})
	}
}

func TestHandlePanic(t *testing.T) {
	t.Cleanup(resetMocks)

	t.Run("writes the panic log and exits with 2", func(t *testing.T) {
		var written []byte
		var path string
		osWriteFile = func(name string, data []byte, _ os.FileMode) error {
			path, written = name, data
			return nil
		}
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		func() {
			defer handlePanic()
			panic("walker exploded")
		}()

		assert.Equal(t, 2, exitCode)
		assert.Equal(t, panicLogFile, path)
		require.NotEmpty(t, written)
		assert.Contains(t, string(written), "panic: walker exploded")
		assert.Contains(t, string(written), "goroutine", "stack trace should be included")
	})

	t.Run("still exits when the log cannot be written", func(t *testing.T) {
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		func() {
			defer handlePanic()
			panic("again")
		}()

		assert.Equal(t, 2, exitCode)
	})

	t.Run("no panic is a no-op", func(t *testing.T) {
		osExit = func(int) { t.Fatal("osExit must not be called") }
		func() {
			defer handlePanic()
		}()
	})
}
