package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gnana997/sential/pkg/bridge"
	"github.com/gnana997/sential/pkg/util"
)

func TestErrorMessageAndExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		message  string
		exitCode int
	}{
		{
			name:     "interrupted",
			err:      fmt.Errorf("select modules: %w", context.Canceled),
			message:  "interrupted",
			exitCode: exitInterrupted,
		},
		{
			name:     "precondition",
			err:      fmt.Errorf("discover: %w", bridge.ErrEmptyInventory),
			message:  "discover: " + bridge.ErrEmptyInventory.Error(),
			exitCode: exitPrecondition,
		},
		{
			name:     "resource",
			err:      util.NewResourceError("start ctags", errors.New("executable file not found")),
			message:  "start ctags: executable file not found (rerun with --log-level debug for details)",
			exitCode: exitFailure,
		},
		{
			name:     "other",
			err:      errors.New("boom"),
			message:  "boom",
			exitCode: exitFailure,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.message, errorMessage(tc.err))
			assert.Equal(t, tc.exitCode, exitCode(tc.err))
		})
	}
}
