package gpuapi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("setup", func(t *testing.T) {
		err := &SetupError{Err: errors.New("libnvidia-ml.so: cannot open shared object file")}
		assert.Equal(t, KindSetup, KindOf(err))
		assert.Equal(t, KindSetup, KindOf(fmt.Errorf("open: %w", err)))
	})

	t.Run("state misuse", func(t *testing.T) {
		for _, err := range []error{ErrAlreadyOpen, ErrNotOpen, ErrIndexOutOfRange, ErrNoProcessTable} {
			assert.Equal(t, KindStateMisuse, KindOf(err), err.Error())
			assert.Equal(t, KindStateMisuse, KindOf(fmt.Errorf("wrapped: %w", err)))
		}
	})

	t.Run("vendor", func(t *testing.T) {
		assert.Equal(t, KindVendor, KindOf(errors.New("nvmlDeviceGetTemperature: GPU is lost")))
	})
}

func TestSetupErrorUnwrap(t *testing.T) {
	inner := errors.New("symbol nvmlInit_v2 not found")
	err := &SetupError{Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "setup")
}
