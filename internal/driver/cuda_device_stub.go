//go:build !cuda

package driver

import (
	"go.uber.org/zap"
)

// CUDADevice stub for builds without the cuda tag
type CUDADevice struct {
	libPath string
}

// NewCUDADevice returns a device that is never available
func NewCUDADevice(logger *zap.Logger, libPath string) (*CUDADevice, error) {
	logger.Debug("built without CUDA support", zap.String("library", libPath))
	return &CUDADevice{libPath: libPath}, nil
}

func (d *CUDADevice) IsAvailable() bool { return false }

func (d *CUDADevice) Initialize() error { return ErrUnavailable }

func (d *CUDADevice) MemInfo() (uint64, uint64, error) { return 0, 0, ErrUnavailable }

func (d *CUDADevice) LoadModule([]byte) (Module, error) { return 0, ErrUnavailable }

func (d *CUDADevice) Function(Module, string) (Function, error) { return 0, ErrUnavailable }

func (d *CUDADevice) UnloadModule(Module) error { return ErrUnavailable }

func (d *CUDADevice) Alloc(uint64) (DevicePtr, error) { return 0, ErrUnavailable }

func (d *CUDADevice) Free(DevicePtr) error { return ErrUnavailable }

func (d *CUDADevice) CopyHtoD(DevicePtr, []byte) error { return ErrUnavailable }

func (d *CUDADevice) CopyDtoH([]byte, DevicePtr) error { return ErrUnavailable }

func (d *CUDADevice) Launch(Function, uint32, uint32, []DevicePtr) error { return ErrUnavailable }

func (d *CUDADevice) Synchronize() error { return ErrUnavailable }

func (d *CUDADevice) Info() DeviceInfo {
	return DeviceInfo{Name: "CUDA (not compiled in)"}
}

func (d *CUDADevice) Cleanup() error { return nil }
