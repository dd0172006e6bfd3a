package driver

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager handles device selection and lifecycle
type Manager struct {
	device Device
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewManager selects the first candidate that is available and initializes
// cleanly. Candidates that fail are cleaned up before the next one is tried.
func NewManager(logger *zap.Logger, candidates ...Device) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		logger: logger,
	}

	if err := m.detectAndInitialize(candidates); err != nil {
		return nil, err
	}

	return m, nil
}

// detectAndInitialize initializes the first usable candidate
func (m *Manager) detectAndInitialize(candidates []Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, d := range candidates {
		if d == nil || !d.IsAvailable() {
			continue
		}
		err := d.Initialize()
		if err == nil {
			m.device = d
			info := d.Info()
			m.logger.Info("device selected",
				zap.String("name", info.Name),
				zap.String("compute_capability", info.ComputeCapability),
				zap.String("driver_version", info.DriverVersion),
				zap.Float64("total_memory_gb", float64(info.TotalMemory)/(1<<30)))
			return nil
		}
		m.logger.Warn("device initialization failed", zap.Error(err))
		errs = append(errs, err)
		_ = d.Cleanup()
	}
	if len(errs) == 0 {
		return fmt.Errorf("no device available: %w", ErrUnavailable)
	}
	return fmt.Errorf("no device could be initialized: %w", errors.Join(errs...))
}

// Device returns the selected device
func (m *Manager) Device() Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.device
}

// Info returns device information from the selected device
func (m *Manager) Info() DeviceInfo {
	d := m.Device()
	if d == nil {
		return DeviceInfo{Name: "No device available"}
	}
	return d.Info()
}

// DeviceType returns a string describing the selected device
func (m *Manager) DeviceType() string {
	switch m.Device().(type) {
	case nil:
		return "none"
	case *HostDevice:
		return "host"
	case *CUDADevice:
		return "cuda"
	}
	return "unknown"
}

// Cleanup releases resources held by the selected device
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Cleanup(); err != nil {
			return err
		}
		m.device = nil
	}
	return nil
}
