package sandbox

import (
	"context"

	"github.com/tetratelabs/wazero"
)

// Reason codes produced by the static WASM probe. These are new codes,
// additive to the closed reason-code vocabulary: the core's WASM handling
// predates having any real WebAssembly runtime in reach, so v0 never
// inspected WASM modules beyond the detect-stage histogram bit. Wiring
// wazero gives the examiner a genuine (if execution-free) opinion on
// whether a detected .wasm file is even a well-formed module.
const (
	WasmModuleValid       = "WASM_MODULE_VALID"
	WasmModuleInvalid     = "WASM_MODULE_INVALID"
	WasmProbeTimeout      = "WASM_PROBE_TIMEOUT"
	WasmProbeSkippedSize  = "WASM_PROBE_SKIPPED_SIZE"
)

// WasmProbeLimits bounds the static probe.
type WasmProbeLimits struct {
	MaxModuleBytes int
}

// ProbeWasmModule statically validates a WASM module's structure — magic
// number, version, section layout — by compiling it with wazero and
// immediately discarding the compiled module. It never instantiates or
// runs any exported function; the sandbox's governing rule ("never
// execute native binaries") extends to WASM, so even this probe stops at
// compile.
func ProbeWasmModule(ctx context.Context, module []byte, limits WasmProbeLimits) string {
	if limits.MaxModuleBytes > 0 && len(module) > limits.MaxModuleBytes {
		return WasmProbeSkippedSize
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		if ctx.Err() != nil {
			return WasmProbeTimeout
		}
		return WasmModuleInvalid
	}
	defer compiled.Close(ctx)

	return WasmModuleValid
}
