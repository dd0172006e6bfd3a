//go:build cuda

package driver

import (
	"go.uber.org/zap"

	"github.com/fxnlabs/ptx-conformance/internal/ptx"
)

// NewCompiler returns NVRTC when a library path is given and the direct PTX
// path otherwise.
func NewCompiler(logger *zap.Logger, path string, h ptx.Header) (Compiler, error) {
	if path != "" {
		return NewNVRTCCompiler(logger, path, h)
	}
	logger.Debug("Using direct PTX compiler", zap.String("target", h.Target))
	return NewDirectCompiler(h), nil
}
