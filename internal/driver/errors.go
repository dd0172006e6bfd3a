package driver

import (
	"errors"
	"fmt"
)

// Driver calls reported in Error.Op.
const (
	OpInit         = "cuInit"
	OpDeviceGet    = "cuDeviceGet"
	OpCtxCreate    = "cuCtxCreate_v2"
	OpCtxDestroy   = "cuCtxDestroy_v2"
	OpMemGetInfo   = "cuMemGetInfo_v2"
	OpModuleLoad   = "cuModuleLoadDataEx"
	OpGetFunction  = "cuModuleGetFunction"
	OpModuleUnload = "cuModuleUnload"
	OpMemAlloc     = "cuMemAlloc_v2"
	OpMemFree      = "cuMemFree_v2"
	OpMemcpyHtoD   = "cuMemcpyHtoD_v2"
	OpMemcpyDtoH   = "cuMemcpyDtoH_v2"
	OpLaunch       = "cuLaunchKernel"
	OpSynchronize  = "cuStreamSynchronize"
	OpCompile      = "nvrtcCompileProgram"
)

// Result codes of the CUDA driver API used by this package.
const (
	CodeInvalidValue    = 1
	CodeOutOfMemory     = 2
	CodeNotInitialized  = 3
	CodeNoDevice        = 100
	CodeInvalidImage    = 200
	CodeInvalidContext  = 201
	CodeNoBinaryForGPU  = 209
	CodeInvalidPTX      = 218
	CodeInvalidHandle   = 400
	CodeNotFound        = 500
	CodeLaunchFailed    = 719
	CodeNotSupported    = 801
	CodeUnknown         = 999
	CodeCompilationFail = 6 // NVRTC_ERROR_COMPILATION
)

var codeNames = map[int]string{
	CodeInvalidValue:   "CUDA_ERROR_INVALID_VALUE",
	CodeOutOfMemory:    "CUDA_ERROR_OUT_OF_MEMORY",
	CodeNotInitialized: "CUDA_ERROR_NOT_INITIALIZED",
	CodeNoDevice:       "CUDA_ERROR_NO_DEVICE",
	CodeInvalidImage:   "CUDA_ERROR_INVALID_IMAGE",
	CodeInvalidContext: "CUDA_ERROR_INVALID_CONTEXT",
	CodeNoBinaryForGPU: "CUDA_ERROR_NO_BINARY_FOR_GPU",
	CodeInvalidPTX:     "CUDA_ERROR_INVALID_PTX",
	CodeInvalidHandle:  "CUDA_ERROR_INVALID_HANDLE",
	CodeNotFound:       "CUDA_ERROR_NOT_FOUND",
	CodeLaunchFailed:   "CUDA_ERROR_LAUNCH_FAILED",
	CodeNotSupported:   "CUDA_ERROR_NOT_SUPPORTED",
	CodeUnknown:        "CUDA_ERROR_UNKNOWN",
}

// ErrUnavailable is returned by devices and compilers this build cannot
// provide.
var ErrUnavailable = errors.New("driver: not available in this build")

// Error is a failed driver or compiler call.
type Error struct {
	Op   string
	Code int
	// Log holds the JIT or compiler log, if the call produced one.
	Log string
}

func (e *Error) Error() string {
	name, ok := codeNames[e.Code]
	if e.Op == OpCompile {
		name, ok = "NVRTC_ERROR_COMPILATION", e.Code == CodeCompilationFail
	}
	if !ok {
		name = fmt.Sprintf("error %d", e.Code)
	}
	if e.Log != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, name, e.Log)
	}
	return fmt.Sprintf("%s: %s", e.Op, name)
}

// AsCompileError reports whether err is a rejected program: a module the
// driver refused to load or source the compiler refused to build.
func AsCompileError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && (e.Op == OpModuleLoad || e.Op == OpCompile) {
		return e, true
	}
	return nil, false
}

// IsNotFound reports whether err is a failed entry point lookup.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Op == OpGetFunction && e.Code == CodeNotFound
}

func check(op string, code int) error {
	if code == 0 {
		return nil
	}
	return &Error{Op: op, Code: code}
}
