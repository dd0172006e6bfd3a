//go:build cuda

package driver

/*
#cgo LDFLAGS: -ldl
#include <stdlib.h>
#include <dlfcn.h>

typedef int nvrtcResult;

static void* nvrtc = NULL;

static nvrtcResult (*fn_CreateProgram)(void**, const char*, const char*, int, const char* const*, const char* const*);
static nvrtcResult (*fn_CompileProgram)(void*, int, const char* const*);
static nvrtcResult (*fn_GetProgramLogSize)(void*, size_t*);
static nvrtcResult (*fn_GetProgramLog)(void*, char*);
static nvrtcResult (*fn_GetPTXSize)(void*, size_t*);
static nvrtcResult (*fn_GetPTX)(void*, char*);
static nvrtcResult (*fn_DestroyProgram)(void**);

static int nvrtc_load(const char* path) {
    if (nvrtc) return 0;
    void* h = dlopen(path, RTLD_NOW | RTLD_LOCAL);
    if (!h) return -1;

    #define LOAD(name, sym) *(void**)(&name) = dlsym(h, sym); if (!name) { dlclose(h); return -2; }
    LOAD(fn_CreateProgram, "nvrtcCreateProgram");
    LOAD(fn_CompileProgram, "nvrtcCompileProgram");
    LOAD(fn_GetProgramLogSize, "nvrtcGetProgramLogSize");
    LOAD(fn_GetProgramLog, "nvrtcGetProgramLog");
    LOAD(fn_GetPTXSize, "nvrtcGetPTXSize");
    LOAD(fn_GetPTX, "nvrtcGetPTX");
    LOAD(fn_DestroyProgram, "nvrtcDestroyProgram");
    #undef LOAD
    nvrtc = h;
    return 0;
}

static const char* nvrtc_dlerror() {
    const char* e = dlerror();
    return e ? e : "symbol missing";
}

// On return *log is a malloc'd diagnostic (possibly empty) and, on success,
// *ptx is the malloc'd module text. The caller frees both.
static nvrtcResult nvrtc_compile(const char* src, const char* arch, char** ptx, char** log) {
    void* prog = NULL;
    *ptx = NULL;
    *log = NULL;
    nvrtcResult r = fn_CreateProgram(&prog, src, "test.cu", 0, NULL, NULL);
    if (r) return r;

    const char* opts[1] = {arch};
    nvrtcResult cr = fn_CompileProgram(prog, 1, opts);

    size_t n = 0;
    if (fn_GetProgramLogSize(prog, &n) == 0 && n > 0) {
        *log = malloc(n);
        if (*log && fn_GetProgramLog(prog, *log)) { free(*log); *log = NULL; }
    }
    if (cr == 0) {
        if ((r = fn_GetPTXSize(prog, &n)) == 0) {
            *ptx = malloc(n);
            r = *ptx ? fn_GetPTX(prog, *ptx) : 5; // NVRTC_ERROR_OUT_OF_MEMORY
        }
        cr = r;
    }
    fn_DestroyProgram(&prog);
    return cr;
}
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"

	"go.uber.org/zap"

	"github.com/fxnlabs/ptx-conformance/internal/ptx"
)

// NVRTCCompiler wraps the program body in a CUDA C++ kernel as inline
// assembly and compiles it with NVRTC. The PTX it emits goes through the same
// driver JIT as DirectCompiler's output.
type NVRTCCompiler struct {
	logger *zap.Logger
	arch   string
}

// NewNVRTCCompiler loads the NVRTC library at path. The target architecture
// comes from the module header: sm_89 compiles with compute_89.
func NewNVRTCCompiler(logger *zap.Logger, path string, h ptx.Header) (*NVRTCCompiler, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	if rc := C.nvrtc_load(cpath); rc != 0 {
		return nil, fmt.Errorf("nvrtc: loading %s: %s", path, C.GoString(C.nvrtc_dlerror()))
	}
	arch := "compute_" + strings.TrimPrefix(h.Target, "sm_")
	logger.Info("NVRTC compiler loaded", zap.String("path", path), zap.String("arch", arch))
	return &NVRTCCompiler{logger: logger, arch: "--gpu-architecture=" + arch}, nil
}

func (c *NVRTCCompiler) Compile(p ptx.Program) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, &Error{Op: OpCompile, Code: CodeCompilationFail, Log: err.Error()}
	}
	src := C.CString(p.CUDASource())
	defer C.free(unsafe.Pointer(src))
	arch := C.CString(c.arch)
	defer C.free(unsafe.Pointer(arch))

	var out, log *C.char
	rc := C.nvrtc_compile(src, arch, &out, &log)
	defer C.free(unsafe.Pointer(out))
	defer C.free(unsafe.Pointer(log))
	if rc != 0 {
		return nil, &Error{Op: OpCompile, Code: int(rc), Log: strings.TrimSpace(C.GoString(log))}
	}
	text := C.GoString(out)
	image := make([]byte, len(text)+1)
	copy(image, text)
	return image, nil
}
