package driver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// brokenDevice reports itself available but cannot be initialized.
type brokenDevice struct {
	HostDevice
	cleaned bool
}

func (b *brokenDevice) Initialize() error {
	return &Error{Op: OpCtxCreate, Code: CodeNoDevice}
}

func (b *brokenDevice) Cleanup() error {
	b.cleaned = true
	return nil
}

func TestManager_SelectsFirstUsable(t *testing.T) {
	broken := &brokenDevice{}
	host := NewHostDevice(zap.NewNop(), 1<<20)

	m, err := NewManager(zap.NewNop(), nil, broken, host)
	require.NoError(t, err)

	assert.True(t, broken.cleaned)
	assert.Same(t, host, m.Device())
	assert.Equal(t, "host", m.DeviceType())
	assert.Contains(t, m.Info().Name, "host")

	require.NoError(t, m.Cleanup())
	assert.Nil(t, m.Device())
	assert.Equal(t, "none", m.DeviceType())
	assert.Equal(t, "No device available", m.Info().Name)
	require.NoError(t, m.Cleanup())
}

func TestManager_NoDevice(t *testing.T) {
	_, err := NewManager(zap.NewNop())
	assert.ErrorIs(t, err, ErrUnavailable)

	cuda, err := NewCUDADevice(zap.NewNop(), "/nonexistent/libcuda.so")
	require.NoError(t, err)
	_, err = NewManager(nil, cuda)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestManager_AllFail(t *testing.T) {
	_, err := NewManager(zap.NewNop(), &brokenDevice{})
	require.Error(t, err)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, OpCtxCreate, e.Op)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
