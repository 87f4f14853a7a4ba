package gpuapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetString(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		var buf [16]byte
		SetString(buf[:], "NVIDIA A100")
		assert.Equal(t, "NVIDIA A100", FixedString(buf[:]))
		assert.Equal(t, byte(0), buf[11])
	})

	t.Run("truncates silently but NUL-terminates", func(t *testing.T) {
		var buf [8]byte
		SetString(buf[:], "0000:3b:00.0")
		assert.Equal(t, byte(0), buf[7])
		assert.Equal(t, "0000:3b", FixedString(buf[:]))
	})

	t.Run("exact capacity still terminated", func(t *testing.T) {
		var buf [4]byte
		SetString(buf[:], "abcd")
		assert.Equal(t, byte(0), buf[3])
		assert.Equal(t, "abc", FixedString(buf[:]))
	})

	t.Run("overwrites longer previous content", func(t *testing.T) {
		var buf [16]byte
		SetString(buf[:], strings.Repeat("x", 15))
		SetString(buf[:], "P0")
		assert.Equal(t, "P0", FixedString(buf[:]))
	})
}

func TestFixedStringNoTerminator(t *testing.T) {
	buf := []byte{'f', 'u', 'l', 'l'}
	assert.Equal(t, "full", FixedString(buf))
}

func TestCardInfoAccessors(t *testing.T) {
	var info CardInfo
	SetString(info.BusAddr[:], "00000000:3B:00.0")
	SetString(info.Model[:], "Tesla V100-SXM2-16GB")
	SetString(info.Architecture[:], "7")
	SetString(info.Driver[:], "550.54.14")
	SetString(info.Firmware[:], "12.4")
	SetString(info.UUID[:], "GPU-8f7d2c4a")

	assert.Equal(t, "00000000:3B:00.0", info.BusAddrString())
	assert.Equal(t, "Tesla V100-SXM2-16GB", info.ModelString())
	assert.Equal(t, "7", info.ArchitectureString())
	assert.Equal(t, "550.54.14", info.DriverString())
	assert.Equal(t, "12.4", info.FirmwareString())
	assert.Equal(t, "GPU-8f7d2c4a", info.UUIDString())
}

func TestCardStateAccessors(t *testing.T) {
	var state CardState
	SetString(state.ComputeMode[:], "Default")
	SetString(state.PerfState[:], "P0")
	assert.Equal(t, "Default", state.ComputeModeString())
	assert.Equal(t, "P0", state.PerfStateString())
}
