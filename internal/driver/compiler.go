package driver

import (
	"github.com/fxnlabs/ptx-conformance/internal/ptx"
)

// Compiler turns a test program into an image LoadModule accepts.
// Rejections are reported as *Error with Op OpCompile and the compiler log.
type Compiler interface {
	Compile(p ptx.Program) ([]byte, error)
}

// DirectCompiler renders the program as PTX text and leaves assembly to the
// driver's JIT.
type DirectCompiler struct {
	Header ptx.Header
}

// NewDirectCompiler creates a compiler for the given module header
func NewDirectCompiler(h ptx.Header) *DirectCompiler {
	return &DirectCompiler{Header: h}
}

// Compile returns the NUL-terminated module text.
func (c *DirectCompiler) Compile(p ptx.Program) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, &Error{Op: OpCompile, Code: CodeCompilationFail, Log: err.Error()}
	}
	src := p.Render(c.Header)
	image := make([]byte, len(src)+1)
	copy(image, src)
	return image, nil
}
