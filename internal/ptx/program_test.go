package ptx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxnlabs/ptx-conformance/internal/scalar"
)

const brevBody = `
.reg .b32 %v;
ld.global.b32 %v, [%input_addr];
brev.b32 %v, %v;
st.global.b32 [%output_addr], %v;
`

func brev() Program {
	return Program{Body: brevBody, Args: Args([]scalar.Kind{scalar.U32, scalar.U16}, "input", "output")}
}

func TestRender(t *testing.T) {
	src := brev().Render(DefaultHeader())

	assert.True(t, strings.HasPrefix(src, ".version 7.8\n.target sm_89\n.address_size 64\n"))
	assert.Contains(t, src, ".visible .entry run(\n\t.param .u64 input,\n\t.param .u64 output\n)")
	assert.Contains(t, src, "mad.lo.u64 %input_addr, %gid, 4, %input_addr;")
	assert.Contains(t, src, "mad.lo.u64 %output_addr, %gid, 2, %output_addr;")
	assert.Contains(t, src, "\tbrev.b32 %v, %v;\n")
	assert.True(t, strings.HasSuffix(src, "\tret;\n}\n"))

	custom := brev().Render(Header{Version: "8.0", Target: "sm_90"})
	assert.True(t, strings.HasPrefix(custom, ".version 8.0\n.target sm_90\n"))
}

func TestCUDASource(t *testing.T) {
	src := brev().CUDASource()

	assert.Contains(t, src, `extern "C" __global__ void run(char* input, char* output)`)
	assert.Contains(t, src, `"\t.reg .u64 %%input_addr;\n"`)
	assert.Contains(t, src, `"\tcvta.to.global.u64 %%output_addr, %1;\n"`)
	assert.Contains(t, src, `"brev.b32 %%v, %%v;\n"`)
	assert.Contains(t, src, `:: "l"(input + gid * 4), "l"(output + gid * 2)`)
	assert.Contains(t, src, `: "memory");`)
}

func TestFill(t *testing.T) {
	got := Fill("add<SAT>.<TYPE> %r, %a, %b; // <TYPE>", "<TYPE>", "s32", "<SAT>", ".sat")
	assert.Equal(t, "add.sat.s32 %r, %a, %b; // s32", got)
}

func TestValidate(t *testing.T) {
	require.NoError(t, brev().Validate())

	p := Program{Body: "add<SAT>.<TYPE> %r, %a, %b;", Args: brev().Args}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<SAT>, <TYPE>")

	assert.Error(t, Program{Body: "ret;"}.Validate())
}

func TestArgsPanicsOnMismatch(t *testing.T) {
	assert.Panics(t, func() { Args([]scalar.Kind{scalar.U32}, "a", "b") })
}
