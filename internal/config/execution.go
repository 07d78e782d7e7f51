package config

import "sort"

// ToolsConfig locates the external collaborators.
type ToolsConfig struct {
	// Compiler turns OpenCL into SPIR-V (clspv)
	Compiler string `yaml:"compiler" json:"compiler,omitempty"`

	// Flags passed to every compiler invocation
	CompilerFlags []string `yaml:"compiler_flags" json:"compiler_flags,omitempty"`

	// Disassembler turns SPIR-V into text (spirv-dis)
	Disassembler string `yaml:"disassembler" json:"disassembler,omitempty"`

	// Verifier classifies races (gpuverify)
	Verifier string `yaml:"verifier" json:"verifier,omitempty"`

	// Flag appended to every verifier invocation
	VerifierExtraFlag string `yaml:"verifier_extra_flag" json:"verifier_extra_flag,omitempty"`

	// Per-invocation timeout; "0s" waits forever
	Timeout string `yaml:"timeout" json:"timeout,omitempty"`

	// Extra environment for every tool, e.g. the solver paths gpuverify needs
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Environment returns Env as sorted "KEY=value" entries.
func (t ToolsConfig) Environment() []string {
	if len(t.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+t.Env[k])
	}
	return env
}
