// Package ptx renders test kernels as PTX modules. A test supplies only the
// instruction body; this package adds the module header, the entry point and
// the per-thread address arithmetic every kernel shares.
package ptx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

// EntryPoint is the name of the kernel every module exports.
const EntryPoint = "run"

// Header is the module preamble.
type Header struct {
	Version string
	Target  string
}

// DefaultHeader targets PTX ISA 7.8 on sm_89.
func DefaultHeader() Header {
	return Header{Version: "7.8", Target: "sm_89"}
}

// Arg is one kernel parameter: a global pointer to a column of Kind elements.
type Arg struct {
	Name string
	Kind scalar.Kind
}

// Program is a kernel body plus the columns it reads and writes. Inside the
// body, %<name>_addr holds the global address of the current thread's element
// of column <name>.
type Program struct {
	Body string
	Args []Arg
}

// Args pairs names with kinds positionally. It panics on a length mismatch.
func Args(kinds []scalar.Kind, names ...string) []Arg {
	if len(kinds) != len(names) {
		panic(fmt.Sprintf("ptx: %d argument names for %d columns", len(names), len(kinds)))
	}
	args := make([]Arg, len(kinds))
	for i, k := range kinds {
		args[i] = Arg{Name: names[i], Kind: k}
	}
	return args
}

// Fill replaces template placeholders such as <TYPE>. pairs alternates
// placeholder and value.
func Fill(template string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(template)
}

var placeholder = regexp.MustCompile(`<[A-Z][A-Z0-9_]*>`)

// Validate reports placeholders left in the body.
func (p Program) Validate() error {
	if left := placeholder.FindAllString(p.Body, -1); len(left) > 0 {
		return fmt.Errorf("unfilled placeholders %s", strings.Join(left, ", "))
	}
	if len(p.Args) == 0 {
		return fmt.Errorf("program has no arguments")
	}
	return nil
}

// Render returns the full module text.
func (p Program) Render(h Header) string {
	var b strings.Builder
	fmt.Fprintf(&b, ".version %s\n.target %s\n.address_size 64\n\n", h.Version, h.Target)
	fmt.Fprintf(&b, ".visible .entry %s(\n", EntryPoint)
	for i, a := range p.Args {
		sep := ","
		if i == len(p.Args)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "\t.param .u64 %s%s\n", a.Name, sep)
	}
	b.WriteString(")\n{\n")
	b.WriteString("\t.reg .u32 %gid_tid, %gid_ntid, %gid_ctaid;\n")
	b.WriteString("\t.reg .u64 %gid, %gid_tid64;\n")
	b.WriteString("\tmov.u32 %gid_tid, %tid.x;\n")
	b.WriteString("\tmov.u32 %gid_ntid, %ntid.x;\n")
	b.WriteString("\tmov.u32 %gid_ctaid, %ctaid.x;\n")
	b.WriteString("\tmul.wide.u32 %gid, %gid_ctaid, %gid_ntid;\n")
	b.WriteString("\tcvt.u64.u32 %gid_tid64, %gid_tid;\n")
	b.WriteString("\tadd.u64 %gid, %gid, %gid_tid64;\n")
	for _, a := range p.Args {
		addr := "%" + a.Name + "_addr"
		fmt.Fprintf(&b, "\t.reg .u64 %s;\n", addr)
		fmt.Fprintf(&b, "\tld.param.u64 %s, [%s];\n", addr, a.Name)
		fmt.Fprintf(&b, "\tcvta.to.global.u64 %s, %s;\n", addr, addr)
		fmt.Fprintf(&b, "\tmad.lo.u64 %s, %%gid, %d, %s;\n", addr, a.Kind.Size, addr)
	}
	b.WriteString(indent(p.Body))
	b.WriteString("\tret;\n}\n")
	return b.String()
}

// CUDASource wraps the body in a CUDA C++ kernel with the same signature, for
// compilation through NVRTC. The body runs as one inline assembly block; each
// column address is bound to a 64-bit operand.
func (p Program) CUDASource() string {
	var b strings.Builder
	fmt.Fprintf(&b, "extern \"C\" __global__ void %s(", EntryPoint)
	for i, a := range p.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "char* %s", a.Name)
	}
	b.WriteString(")\n{\n")
	b.WriteString("\tunsigned long long gid = (unsigned long long)blockIdx.x * blockDim.x + threadIdx.x;\n")
	b.WriteString("\tasm volatile(\"{\\n\"\n")
	for i, a := range p.Args {
		fmt.Fprintf(&b, "\t\t\"\\t.reg .u64 %%%%%s_addr;\\n\"\n", a.Name)
		fmt.Fprintf(&b, "\t\t\"\\tcvta.to.global.u64 %%%%%s_addr, %%%d;\\n\"\n", a.Name, i)
	}
	for _, line := range strings.Split(strings.TrimRight(p.Body, "\n"), "\n") {
		fmt.Fprintf(&b, "\t\t\"%s\\n\"\n", escapeAsm(line))
	}
	b.WriteString("\t\t\"}\"\n\t\t::")
	for i, a := range p.Args {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " \"l\"(%s + gid * %d)", a.Name, a.Kind.Size)
	}
	b.WriteString("\n\t\t: \"memory\");\n}\n")
	return b.String()
}

func escapeAsm(line string) string {
	line = strings.ReplaceAll(line, `\`, `\\`)
	line = strings.ReplaceAll(line, `"`, `\"`)
	line = strings.ReplaceAll(line, "\t", `\t`)
	return strings.ReplaceAll(line, "%", "%%")
}

func indent(body string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString("\t" + line + "\n")
	}
	return b.String()
}
