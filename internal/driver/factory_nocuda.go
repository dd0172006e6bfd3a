//go:build !cuda

package driver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fxnlabs/ptx-conformance/internal/ptx"
)

// NewCompiler returns the direct PTX compiler. Without CUDA support an
// alternate compiler library cannot be loaded.
func NewCompiler(logger *zap.Logger, path string, h ptx.Header) (Compiler, error) {
	if path != "" {
		return nil, fmt.Errorf("compiler %s: %w", path, ErrUnavailable)
	}
	logger.Debug("Using direct PTX compiler (compiled without CUDA support)", zap.String("target", h.Target))
	return NewDirectCompiler(h), nil
}
