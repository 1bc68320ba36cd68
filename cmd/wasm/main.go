//go:build js && wasm

// Command wasm exposes the simulation to the browser via WebAssembly.
// After loading, it registers a global JavaScript function:
//
//	runSimulation(config) -> jsonString
//
// config is a JSON string or a plain object with the same fields as the
// YAML config file; the result is the JSON run summary printed by the CLI's
// -batch mode, or {error} on failure.
package main

import (
	"syscall/js"

	"github.com/cxd309/intersection-sim/internal/engine"
)

func main() {
	js.Global().Set("runSimulation", js.FuncOf(runSimulation))
	select {} // keep the WASM module alive until the page is closed
}

func runSimulation(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	input := args[0]
	if input.Type() == js.TypeObject {
		input = js.Global().Get("JSON").Call("stringify", input)
	}
	result, err := engine.RunJSON(input.String())
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}
