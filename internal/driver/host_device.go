package driver

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fxnlabs/ptx-conformance/internal/ptx"
)

// HostKernel is a Go implementation of a device program. Run is called once
// per thread with the thread's global index and the full contents of every
// argument buffer, in parameter order.
type HostKernel struct {
	// Match selects the kernel: a module whose image contains Match runs it.
	Match string
	// Entry is the exported function name; empty means ptx.EntryPoint.
	Entry string
	Run   func(gid int, args [][]byte)
}

// HostDevice implements Device in process memory. It loads only programs it
// has a HostKernel for and rejects everything else as an invalid image, which
// makes it a stand-in for the driver in engine and runner tests.
type HostDevice struct {
	logger      *zap.Logger
	totalMemory uint64

	mu          sync.Mutex
	initialized bool
	kernels     []HostKernel
	buffers     map[DevicePtr][]byte
	used        uint64
	nextPtr     DevicePtr
	modules     map[Module]HostKernel
	functions   map[Function]HostKernel
	nextHandle  uint64
	stats       HostStats
}

// HostStats counts calls made against a HostDevice.
type HostStats struct {
	Allocs   int
	Frees    int
	Loads    int
	Unloads  int
	Launches int
	Threads  int
}

// NewHostDevice creates a host device with totalMemory bytes of memory.
func NewHostDevice(logger *zap.Logger, totalMemory uint64) *HostDevice {
	return &HostDevice{
		logger:      logger,
		totalMemory: totalMemory,
		buffers:     make(map[DevicePtr][]byte),
		modules:     make(map[Module]HostKernel),
		functions:   make(map[Function]HostKernel),
		nextPtr:     0x1000,
	}
}

// Register adds a kernel. Later registrations take precedence.
func (h *HostDevice) Register(k HostKernel) {
	if k.Entry == "" {
		k.Entry = ptx.EntryPoint
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kernels = append([]HostKernel{k}, h.kernels...)
}

// IsAvailable checks if the device is available (always true on the host)
func (h *HostDevice) IsAvailable() bool {
	return true
}

// Initialize prepares the host device for use
func (h *HostDevice) Initialize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return nil
	}
	h.initialized = true
	h.logger.Info("host device initialized", zap.Uint64("memory", h.totalMemory))
	return nil
}

func (h *HostDevice) MemInfo() (uint64, uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.initialized {
		return 0, 0, &Error{Op: OpMemGetInfo, Code: CodeNotInitialized}
	}
	return h.totalMemory - h.used, h.totalMemory, nil
}

func (h *HostDevice) LoadModule(image []byte) (Module, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	text := strings.TrimRight(string(image), "\x00")
	for _, k := range h.kernels {
		if strings.Contains(text, k.Match) {
			h.nextHandle++
			m := Module(h.nextHandle)
			h.modules[m] = k
			h.stats.Loads++
			return m, nil
		}
	}
	return 0, &Error{Op: OpModuleLoad, Code: CodeInvalidPTX, Log: "host device: no kernel matches module"}
}

func (h *HostDevice) Function(m Module, name string) (Function, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k, ok := h.modules[m]
	if !ok {
		return 0, &Error{Op: OpGetFunction, Code: CodeInvalidHandle}
	}
	if k.Entry != name {
		return 0, &Error{Op: OpGetFunction, Code: CodeNotFound}
	}
	h.nextHandle++
	f := Function(h.nextHandle)
	h.functions[f] = k
	return f, nil
}

func (h *HostDevice) UnloadModule(m Module) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.modules[m]; !ok {
		return &Error{Op: OpModuleUnload, Code: CodeInvalidHandle}
	}
	delete(h.modules, m)
	h.stats.Unloads++
	return nil
}

func (h *HostDevice) Alloc(size uint64) (DevicePtr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.initialized {
		return 0, &Error{Op: OpMemAlloc, Code: CodeNotInitialized}
	}
	if size == 0 {
		return 0, &Error{Op: OpMemAlloc, Code: CodeInvalidValue}
	}
	if h.used+size > h.totalMemory {
		return 0, &Error{Op: OpMemAlloc, Code: CodeOutOfMemory}
	}
	p := h.nextPtr
	h.nextPtr += DevicePtr((size + 255) &^ 255)
	h.buffers[p] = make([]byte, size)
	h.used += size
	h.stats.Allocs++
	return p, nil
}

func (h *HostDevice) Free(p DevicePtr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.buffers[p]
	if !ok {
		return &Error{Op: OpMemFree, Code: CodeInvalidValue}
	}
	h.used -= uint64(len(buf))
	delete(h.buffers, p)
	h.stats.Frees++
	return nil
}

func (h *HostDevice) CopyHtoD(dst DevicePtr, src []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.buffers[dst]
	if !ok || len(src) > len(buf) {
		return &Error{Op: OpMemcpyHtoD, Code: CodeInvalidValue}
	}
	copy(buf, src)
	return nil
}

func (h *HostDevice) CopyDtoH(dst []byte, src DevicePtr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.buffers[src]
	if !ok || len(dst) > len(buf) {
		return &Error{Op: OpMemcpyDtoH, Code: CodeInvalidValue}
	}
	copy(dst, buf)
	return nil
}

// Launch runs the kernel synchronously for every thread of the grid.
func (h *HostDevice) Launch(f Function, grid, block uint32, args []DevicePtr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	k, ok := h.functions[f]
	if !ok {
		return &Error{Op: OpLaunch, Code: CodeInvalidHandle}
	}
	bufs := make([][]byte, len(args))
	for i, p := range args {
		buf, ok := h.buffers[p]
		if !ok {
			return &Error{Op: OpLaunch, Code: CodeInvalidValue}
		}
		bufs[i] = buf
	}
	threads := int(grid) * int(block)
	for gid := 0; gid < threads; gid++ {
		k.Run(gid, bufs)
	}
	h.stats.Launches++
	h.stats.Threads += threads
	return nil
}

func (h *HostDevice) Synchronize() error {
	return nil
}

// Info returns device information for the host
func (h *HostDevice) Info() DeviceInfo {
	return DeviceInfo{
		Name:              fmt.Sprintf("host (%s)", runtime.GOARCH),
		TotalMemory:       h.totalMemory,
		ComputeCapability: "N/A",
		DriverVersion:     runtime.Version(),
	}
}

// Cleanup releases every buffer and module
func (h *HostDevice) Cleanup() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffers = make(map[DevicePtr][]byte)
	h.modules = make(map[Module]HostKernel)
	h.functions = make(map[Function]HostKernel)
	h.used = 0
	h.initialized = false
	return nil
}

// Stats returns the call counters.
func (h *HostDevice) Stats() HostStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// LiveBuffers returns the number of allocations not yet freed.
func (h *HostDevice) LiveBuffers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffers)
}
