// Package driver is the boundary to the GPU driver and the program compiler.
// Everything the engine needs from a device goes through the Device interface,
// so the same tests run against the CUDA driver or the in-process HostDevice.
package driver

// DevicePtr is an address in device global memory.
type DevicePtr uint64

// Module and Function are opaque handles issued by a Device.
type Module uint64

type Function uint64

// DeviceInfo contains information about the device under test
type DeviceInfo struct {
	Name              string `json:"name"`
	TotalMemory       uint64 `json:"totalMemory"` // in bytes
	ComputeCapability string `json:"computeCapability"`
	DriverVersion     string `json:"driverVersion"`
}

// Device defines the driver capabilities the test engine relies on.
//
// Implementation notes:
//   - A Device owns one context; Initialize creates it and Cleanup destroys it
//   - Every failure is reported as *Error carrying the driver call and its code
//   - Module load failures use OpModuleLoad and carry the JIT log when available
//   - Implementations must be safe for use from one goroutine at a time; the
//     Manager serializes access
type Device interface {
	// IsAvailable performs a quick check without creating a context.
	IsAvailable() bool

	// Initialize prepares the device for use. Calling it twice is a no-op.
	Initialize() error

	// MemInfo returns the free and total device memory in bytes.
	MemInfo() (free, total uint64, err error)

	// LoadModule JIT-compiles or loads a program image.
	LoadModule(image []byte) (Module, error)

	// Function resolves an entry point in a loaded module.
	Function(m Module, name string) (Function, error)

	UnloadModule(m Module) error

	Alloc(size uint64) (DevicePtr, error)
	Free(p DevicePtr) error

	CopyHtoD(dst DevicePtr, src []byte) error
	CopyDtoH(dst []byte, src DevicePtr) error

	// Launch runs f on a one-dimensional grid. Every argument is a device
	// pointer.
	Launch(f Function, grid, block uint32, args []DevicePtr) error

	// Synchronize waits for all launched work to finish.
	Synchronize() error

	Info() DeviceInfo

	// Cleanup releases the context and every resource still held.
	Cleanup() error
}
