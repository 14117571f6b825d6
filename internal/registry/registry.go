// Package registry maps source formats, filter stages and sink formats to
// their module constructors.
//
// # Adding a New Format
//
// To add a new sink (e.g., "parquet"):
//
//  1. Implement output.Module
//  2. Create a constructor matching OutputConstructor
//  3. Register the constructor in an init() function
//
// Example:
//
//	func init() {
//	    registry.RegisterOutput("parquet", NewParquetSink)
//	}
//
// Built-in loaders (xlsx, csv, tsv, json), filter stages (match, where) and
// sinks (xlsx, json, csv, sqlite) are registered by builtins.go.
package registry

import (
	"slices"
	"sync"

	"github.com/rowsift/runtime/internal/modules/filter"
	"github.com/rowsift/runtime/internal/modules/input"
	"github.com/rowsift/runtime/internal/modules/output"
	"github.com/rowsift/runtime/pkg/sift"
)

// InputConstructor creates a loader for a resolved source path.
type InputConstructor func(path string, src sift.SourceConfig) (input.Module, error)

// FilterConstructor creates a filter stage from the job.
// It returns a nil module when the job does not use the stage.
type FilterConstructor func(job *sift.Job) (filter.Module, error)

// OutputConstructor creates a sink from its configuration.
type OutputConstructor func(cfg sift.SinkConfig) (output.Module, error)

var (
	inputMu       sync.RWMutex
	inputRegistry = make(map[string]InputConstructor)
)

var (
	filterMu       sync.RWMutex
	filterRegistry = make(map[string]FilterConstructor)
)

var (
	outputMu       sync.RWMutex
	outputRegistry = make(map[string]OutputConstructor)
)

// RegisterInput registers a loader constructor by source format.
// Registering an existing format overwrites the previous constructor.
func RegisterInput(format string, constructor InputConstructor) {
	inputMu.Lock()
	defer inputMu.Unlock()
	inputRegistry[format] = constructor
}

// RegisterFilter registers a filter stage constructor by stage name.
// Registering an existing name overwrites the previous constructor.
func RegisterFilter(stage string, constructor FilterConstructor) {
	filterMu.Lock()
	defer filterMu.Unlock()
	filterRegistry[stage] = constructor
}

// RegisterOutput registers a sink constructor by format.
// Registering an existing format overwrites the previous constructor.
func RegisterOutput(format string, constructor OutputConstructor) {
	outputMu.Lock()
	defer outputMu.Unlock()
	outputRegistry[format] = constructor
}

// GetInputConstructor returns the constructor for format, or nil.
func GetInputConstructor(format string) InputConstructor {
	inputMu.RLock()
	defer inputMu.RUnlock()
	return inputRegistry[format]
}

// GetFilterConstructor returns the constructor for stage, or nil.
func GetFilterConstructor(stage string) FilterConstructor {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return filterRegistry[stage]
}

// GetOutputConstructor returns the constructor for format, or nil.
func GetOutputConstructor(format string) OutputConstructor {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return outputRegistry[format]
}

// ListInputTypes returns the registered source formats, sorted.
func ListInputTypes() []string {
	inputMu.RLock()
	defer inputMu.RUnlock()
	return sortedKeys(inputRegistry)
}

// ListFilterTypes returns the registered filter stages, sorted.
func ListFilterTypes() []string {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return sortedKeys(filterRegistry)
}

// ListOutputTypes returns the registered sink formats, sorted.
func ListOutputTypes() []string {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return sortedKeys(outputRegistry)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ClearRegistries removes all registered constructors.
// This is intended for testing purposes only.
func ClearRegistries() {
	inputMu.Lock()
	inputRegistry = make(map[string]InputConstructor)
	inputMu.Unlock()

	filterMu.Lock()
	filterRegistry = make(map[string]FilterConstructor)
	filterMu.Unlock()

	outputMu.Lock()
	outputRegistry = make(map[string]OutputConstructor)
	outputMu.Unlock()
}

// RegisterBuiltins (re)registers every built-in constructor.
func RegisterBuiltins() {
	registerBuiltinInputModules()
	registerBuiltinFilterModules()
	registerBuiltinOutputModules()
}
