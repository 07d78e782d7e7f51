package spirv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kernelDis = `; SPIR-V
; Version: 1.6
; Generator: Google Clspv; 0
; Bound: 40
; Schema: 0
               OpCapability Shader
               OpMemoryModel Logical GLSL450
               OpEntryPoint GLCompute %foo "foo" %gl_LocalInvocationID %13 %14
               OpDecorate %_runtimearr_uint ArrayStride 4
               OpDecorate %_struct_3 Block
       %uint = OpTypeInt 32 0
%_runtimearr_uint = OpTypeRuntimeArray %uint
  %_struct_3 = OpTypeStruct %_runtimearr_uint
%_ptr_StorageBuffer__struct_3 = OpTypePointer StorageBuffer %_struct_3
     %_struct_30 = OpTypeStruct %uint
         %13 = OpVariable %_ptr_StorageBuffer__struct_3 StorageBuffer
         %14 = OpVariable %_ptr_StorageBuffer__struct_3 StorageBuffer
        %foo = OpFunction %void None %8
         %20 = OpAccessChain %_ptr_StorageBuffer_uint %13 %uint_0 %19
`

func TestParse(t *testing.T) {
	m := Parse("%a = OpTypeInt 32 0\nOpCapability Shader\n%b = OpConstant %a 1\n")

	want := []Instruction{
		{Result: "%a", Operands: "OpTypeInt 32 0"},
		{Result: "%b", Operands: "OpConstant %a 1"},
	}
	if diff := cmp.Diff(want, m.Instructions); diff != "" {
		t.Fatalf("instructions mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_FirstEqualsOnly(t *testing.T) {
	m := Parse(`%str = OpString "a=b"`)
	require.Len(t, m.Instructions, 1)
	assert.Equal(t, `OpString "a=b"`, m.Instructions[0].Operands)
}

func TestParse_RedeclarationKeepsPosition(t *testing.T) {
	m := Parse("%a = OpTypeInt 32 0\n%b = OpTypeBool\n%a = OpTypeInt 64 0\n")
	require.Len(t, m.Instructions, 2)
	assert.Equal(t, Instruction{Result: "%a", Operands: "OpTypeInt 64 0"}, m.Instructions[0])
	assert.Equal(t, "%b", m.Instructions[1].Result)
}

func TestRuntimeArrayChain(t *testing.T) {
	c, ok := Parse(kernelDis).RuntimeArrayChain()
	require.True(t, ok)

	want := Chain{
		RuntimeArray: "%_runtimearr_uint",
		Struct:       "%_struct_3",
		Pointer:      "%_ptr_StorageBuffer__struct_3",
		Variables:    []string{"%13", "%14"},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("chain mismatch (-want +got):\n%s", diff)
	}
}

func TestRuntimeArrayVariables_NoRuntimeArray(t *testing.T) {
	text := "%uint = OpTypeInt 32 0\n%v = OpVariable %_ptr_Private_uint Private\n"
	assert.Empty(t, RuntimeArrayVariables(text))
}

func TestRuntimeArrayVariables_BrokenChain(t *testing.T) {
	// runtime array never wrapped in a struct
	text := "%uint = OpTypeInt 32 0\n%rt = OpTypeRuntimeArray %uint\n"
	assert.Nil(t, RuntimeArrayVariables(text))
}

func TestRuntimeArrayVariables_ExactTokenMatch(t *testing.T) {
	text := "%5 = OpTypeRuntimeArray %uint\n" +
		"%50 = OpTypeStruct %uint\n" +
		"%6 = OpTypeStruct %5\n" +
		"%7 = OpTypePointer StorageBuffer %6\n" +
		"%8 = OpVariable %7 StorageBuffer\n"
	assert.Equal(t, []string{"%8"}, RuntimeArrayVariables(text))
}

func TestRuntimeArrayVariables_FirstArrayOnly(t *testing.T) {
	text := "%rt1 = OpTypeRuntimeArray %uint\n" +
		"%rt2 = OpTypeRuntimeArray %float\n" +
		"%s1 = OpTypeStruct %rt1\n" +
		"%s2 = OpTypeStruct %rt2\n" +
		"%p1 = OpTypePointer StorageBuffer %s1\n" +
		"%p2 = OpTypePointer StorageBuffer %s2\n" +
		"%v1 = OpVariable %p1 StorageBuffer\n" +
		"%v2 = OpVariable %p2 StorageBuffer\n"
	assert.Equal(t, []string{"%v1"}, RuntimeArrayVariables(text))
}

func TestVariablesAreDeclared(t *testing.T) {
	m := Parse(kernelDis)
	for _, v := range RuntimeArrayVariables(kernelDis) {
		assert.True(t, declared(m, v), "variable %s not declared", v)
	}
}

func declared(m *Module, id string) bool {
	for _, in := range m.Instructions {
		if in.Result == id {
			return true
		}
	}
	return false
}
