//go:build cuda

package driver

/*
#cgo LDFLAGS: -ldl
#include <stdlib.h>
#include <dlfcn.h>

typedef int CUresult;
typedef int CUdevice;
typedef unsigned long long CUdeviceptr;

static void* lib = NULL;
static void* ctx = NULL;
static CUdevice dev = 0;

static CUresult (*fn_Init)(unsigned int);
static CUresult (*fn_DeviceGetCount)(int*);
static CUresult (*fn_DeviceGet)(CUdevice*, int);
static CUresult (*fn_DeviceGetName)(char*, int, CUdevice);
static CUresult (*fn_DeviceTotalMem)(size_t*, CUdevice);
static CUresult (*fn_DeviceGetAttribute)(int*, int, CUdevice);
static CUresult (*fn_DriverGetVersion)(int*);
static CUresult (*fn_CtxCreate)(void**, unsigned int, CUdevice);
static CUresult (*fn_CtxDestroy)(void*);
static CUresult (*fn_CtxSetCurrent)(void*);
static CUresult (*fn_MemGetInfo)(size_t*, size_t*);
static CUresult (*fn_ModuleLoadDataEx)(void**, const void*, unsigned int, int*, void**);
static CUresult (*fn_ModuleGetFunction)(void**, void*, const char*);
static CUresult (*fn_ModuleUnload)(void*);
static CUresult (*fn_MemAlloc)(CUdeviceptr*, size_t);
static CUresult (*fn_MemFree)(CUdeviceptr);
static CUresult (*fn_MemcpyHtoD)(CUdeviceptr, const void*, size_t);
static CUresult (*fn_MemcpyDtoH)(void*, CUdeviceptr, size_t);
static CUresult (*fn_LaunchKernel)(void*, unsigned int, unsigned int, unsigned int,
    unsigned int, unsigned int, unsigned int, unsigned int, void*, void**, void**);
static CUresult (*fn_StreamSynchronize)(void*);

static int cu_load(const char* path) {
    if (lib) return 0;
    void* h = dlopen(path, RTLD_NOW | RTLD_LOCAL);
    if (!h) return -1;

    #define LOAD(name, sym) *(void**)(&name) = dlsym(h, sym); if (!name) { dlclose(h); return -2; }
    LOAD(fn_Init, "cuInit");
    LOAD(fn_DeviceGetCount, "cuDeviceGetCount");
    LOAD(fn_DeviceGet, "cuDeviceGet");
    LOAD(fn_DeviceGetName, "cuDeviceGetName");
    LOAD(fn_DeviceTotalMem, "cuDeviceTotalMem_v2");
    LOAD(fn_DeviceGetAttribute, "cuDeviceGetAttribute");
    LOAD(fn_DriverGetVersion, "cuDriverGetVersion");
    LOAD(fn_CtxCreate, "cuCtxCreate_v2");
    LOAD(fn_CtxDestroy, "cuCtxDestroy_v2");
    LOAD(fn_CtxSetCurrent, "cuCtxSetCurrent");
    LOAD(fn_MemGetInfo, "cuMemGetInfo_v2");
    LOAD(fn_ModuleLoadDataEx, "cuModuleLoadDataEx");
    LOAD(fn_ModuleGetFunction, "cuModuleGetFunction");
    LOAD(fn_ModuleUnload, "cuModuleUnload");
    LOAD(fn_MemAlloc, "cuMemAlloc_v2");
    LOAD(fn_MemFree, "cuMemFree_v2");
    LOAD(fn_MemcpyHtoD, "cuMemcpyHtoD_v2");
    LOAD(fn_MemcpyDtoH, "cuMemcpyDtoH_v2");
    LOAD(fn_LaunchKernel, "cuLaunchKernel");
    LOAD(fn_StreamSynchronize, "cuStreamSynchronize");
    #undef LOAD
    lib = h;
    return 0;
}

static const char* cu_dlerror() {
    const char* e = dlerror();
    return e ? e : "symbol missing";
}

static CUresult cu_device_count(int* n) {
    CUresult r = fn_Init(0);
    if (r) return r;
    return fn_DeviceGetCount(n);
}

static CUresult cu_open(int ordinal, char* name, int nameLen, size_t* total, int* major, int* minor, int* version) {
    CUresult r = fn_Init(0);
    if (r) return r;
    if ((r = fn_DeviceGet(&dev, ordinal))) return r;
    if ((r = fn_DeviceGetName(name, nameLen, dev))) return r;
    if ((r = fn_DeviceTotalMem(total, dev))) return r;
    // CU_DEVICE_ATTRIBUTE_COMPUTE_CAPABILITY_MAJOR / _MINOR
    if ((r = fn_DeviceGetAttribute(major, 75, dev))) return r;
    if ((r = fn_DeviceGetAttribute(minor, 76, dev))) return r;
    if ((r = fn_DriverGetVersion(version))) return r;
    return fn_CtxCreate(&ctx, 0, dev);
}

static CUresult cu_close() {
    if (!ctx) return 0;
    CUresult r = fn_CtxDestroy(ctx);
    ctx = NULL;
    return r;
}

#define CURRENT { CUresult c = fn_CtxSetCurrent(ctx); if (c) return c; }

static CUresult cu_mem_info(size_t* free, size_t* total) {
    CURRENT
    return fn_MemGetInfo(free, total);
}

static CUresult cu_module_load(void** mod, const void* image, char* log, size_t logSize) {
    CURRENT
    // CU_JIT_ERROR_LOG_BUFFER, CU_JIT_ERROR_LOG_BUFFER_SIZE_BYTES
    int opts[2] = {5, 6};
    void* vals[2] = {log, (void*)logSize};
    return fn_ModuleLoadDataEx(mod, image, 2, opts, vals);
}

static CUresult cu_module_function(void** fn, void* mod, const char* name) {
    CURRENT
    return fn_ModuleGetFunction(fn, mod, name);
}

static CUresult cu_module_unload(void* mod) {
    CURRENT
    return fn_ModuleUnload(mod);
}

static CUresult cu_alloc(CUdeviceptr* p, size_t size) {
    CURRENT
    return fn_MemAlloc(p, size);
}

static CUresult cu_free(CUdeviceptr p) {
    CURRENT
    return fn_MemFree(p);
}

static CUresult cu_htod(CUdeviceptr dst, const void* src, size_t n) {
    CURRENT
    return fn_MemcpyHtoD(dst, src, n);
}

static CUresult cu_dtoh(void* dst, CUdeviceptr src, size_t n) {
    CURRENT
    return fn_MemcpyDtoH(dst, src, n);
}

static CUresult cu_launch(void* fn, unsigned int grid, unsigned int block, CUdeviceptr* args, int n) {
    CURRENT
    void* params[64];
    if (n > 64) return 1;
    for (int i = 0; i < n; i++) params[i] = &args[i];
    return fn_LaunchKernel(fn, grid, 1, 1, block, 1, 1, 0, NULL, params, NULL);
}

static CUresult cu_sync() {
    CURRENT
    return fn_StreamSynchronize(NULL);
}
*/
import "C"

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

const jitLogSize = 16 << 10

// CUDADevice drives device 0 through a dynamically loaded CUDA driver library.
type CUDADevice struct {
	logger  *zap.Logger
	libPath string

	mu          sync.Mutex
	initialized bool
	info        DeviceInfo
	modules     map[Module]unsafe.Pointer
	functions   map[Function]unsafe.Pointer
	allocs      map[DevicePtr]uint64
	nextHandle  uint64
}

// NewCUDADevice creates a device backed by the driver library at libPath.
func NewCUDADevice(logger *zap.Logger, libPath string) (*CUDADevice, error) {
	if libPath == "" {
		return nil, fmt.Errorf("cuda: driver library path is empty")
	}
	return &CUDADevice{
		logger:    logger,
		libPath:   libPath,
		modules:   make(map[Module]unsafe.Pointer),
		functions: make(map[Function]unsafe.Pointer),
		allocs:    make(map[DevicePtr]uint64),
	}, nil
}

func (d *CUDADevice) load() error {
	path := C.CString(d.libPath)
	defer C.free(unsafe.Pointer(path))
	if rc := C.cu_load(path); rc != 0 {
		return fmt.Errorf("cuda: loading %s: %s", d.libPath, C.GoString(C.cu_dlerror()))
	}
	return nil
}

// IsAvailable checks that the library loads and reports at least one device
func (d *CUDADevice) IsAvailable() bool {
	if err := d.load(); err != nil {
		d.logger.Debug("CUDA driver not loadable", zap.Error(err))
		return false
	}
	var n C.int
	if rc := C.cu_device_count(&n); rc != 0 {
		d.logger.Debug("CUDA device query failed", zap.Error(check(OpDeviceGet, int(rc))))
		return false
	}
	return n > 0
}

// Initialize opens device 0 and creates its context
func (d *CUDADevice) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return nil
	}
	if err := d.load(); err != nil {
		return err
	}

	var (
		name    [256]C.char
		total   C.size_t
		major   C.int
		minor   C.int
		version C.int
	)
	if err := check(OpCtxCreate, int(C.cu_open(0, &name[0], C.int(len(name)), &total, &major, &minor, &version))); err != nil {
		return err
	}
	d.info = DeviceInfo{
		Name:              C.GoString(&name[0]),
		TotalMemory:       uint64(total),
		ComputeCapability: fmt.Sprintf("%d.%d", major, minor),
		DriverVersion:     fmt.Sprintf("%d.%d", version/1000, (version%1000)/10),
	}
	d.initialized = true
	d.logger.Info("CUDA device initialized",
		zap.String("name", d.info.Name),
		zap.String("compute_capability", d.info.ComputeCapability))
	return nil
}

func (d *CUDADevice) MemInfo() (uint64, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var free, total C.size_t
	if err := check(OpMemGetInfo, int(C.cu_mem_info(&free, &total))); err != nil {
		return 0, 0, err
	}
	return uint64(free), uint64(total), nil
}

// LoadModule JIT-compiles a NUL-terminated PTX image. On failure the JIT
// error log is attached to the returned *Error.
func (d *CUDADevice) LoadModule(image []byte) (Module, error) {
	if len(image) == 0 || image[len(image)-1] != 0 {
		image = append(append([]byte(nil), image...), 0)
	}
	img := C.CBytes(image)
	defer C.free(img)
	log := (*C.char)(C.calloc(jitLogSize, 1))
	defer C.free(unsafe.Pointer(log))

	d.mu.Lock()
	defer d.mu.Unlock()
	var mod unsafe.Pointer
	if rc := C.cu_module_load(&mod, img, log, jitLogSize); rc != 0 {
		return 0, &Error{Op: OpModuleLoad, Code: int(rc), Log: strings.TrimSpace(C.GoString(log))}
	}
	d.nextHandle++
	m := Module(d.nextHandle)
	d.modules[m] = mod
	return m, nil
}

func (d *CUDADevice) Function(m Module, name string) (Function, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mod, ok := d.modules[m]
	if !ok {
		return 0, &Error{Op: OpGetFunction, Code: CodeInvalidHandle}
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var fn unsafe.Pointer
	if err := check(OpGetFunction, int(C.cu_module_function(&fn, mod, cname))); err != nil {
		return 0, err
	}
	d.nextHandle++
	f := Function(d.nextHandle)
	d.functions[f] = fn
	return f, nil
}

func (d *CUDADevice) UnloadModule(m Module) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	mod, ok := d.modules[m]
	if !ok {
		return &Error{Op: OpModuleUnload, Code: CodeInvalidHandle}
	}
	delete(d.modules, m)
	return check(OpModuleUnload, int(C.cu_module_unload(mod)))
}

func (d *CUDADevice) Alloc(size uint64) (DevicePtr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var p C.CUdeviceptr
	if err := check(OpMemAlloc, int(C.cu_alloc(&p, C.size_t(size)))); err != nil {
		return 0, err
	}
	d.allocs[DevicePtr(p)] = size
	return DevicePtr(p), nil
}

func (d *CUDADevice) Free(p DevicePtr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.allocs, p)
	return check(OpMemFree, int(C.cu_free(C.CUdeviceptr(p))))
}

func (d *CUDADevice) CopyHtoD(dst DevicePtr, src []byte) error {
	if len(src) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return check(OpMemcpyHtoD, int(C.cu_htod(C.CUdeviceptr(dst), unsafe.Pointer(&src[0]), C.size_t(len(src)))))
}

func (d *CUDADevice) CopyDtoH(dst []byte, src DevicePtr) error {
	if len(dst) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return check(OpMemcpyDtoH, int(C.cu_dtoh(unsafe.Pointer(&dst[0]), C.CUdeviceptr(src), C.size_t(len(dst)))))
}

func (d *CUDADevice) Launch(f Function, grid, block uint32, args []DevicePtr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn, ok := d.functions[f]
	if !ok {
		return &Error{Op: OpLaunch, Code: CodeInvalidHandle}
	}
	if len(args) == 0 || len(args) > 64 {
		return &Error{Op: OpLaunch, Code: CodeInvalidValue}
	}
	slots := make([]C.CUdeviceptr, len(args))
	for i, p := range args {
		slots[i] = C.CUdeviceptr(p)
	}
	return check(OpLaunch, int(C.cu_launch(fn, C.uint(grid), C.uint(block), &slots[0], C.int(len(slots)))))
}

func (d *CUDADevice) Synchronize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return check(OpSynchronize, int(C.cu_sync()))
}

// Info returns the properties read during Initialize
func (d *CUDADevice) Info() DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return DeviceInfo{Name: "CUDA (not initialized)"}
	}
	return d.info
}

// Cleanup frees leftover allocations and modules, then destroys the context
func (d *CUDADevice) Cleanup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return nil
	}
	for p := range d.allocs {
		if err := check(OpMemFree, int(C.cu_free(C.CUdeviceptr(p)))); err != nil {
			d.logger.Warn("freeing leaked allocation", zap.Error(err))
		}
	}
	for _, mod := range d.modules {
		_ = C.cu_module_unload(mod)
	}
	d.allocs = make(map[DevicePtr]uint64)
	d.modules = make(map[Module]unsafe.Pointer)
	d.functions = make(map[Function]unsafe.Pointer)
	d.initialized = false
	return check(OpCtxDestroy, int(C.cu_close()))
}
