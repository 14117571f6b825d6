// Package factory builds the modules of a job from its configuration using
// the registry. The runtime never constructs modules directly.
package factory

import (
	"fmt"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/modules/filter"
	"github.com/rowsift/runtime/internal/modules/input"
	"github.com/rowsift/runtime/internal/modules/output"
	"github.com/rowsift/runtime/internal/registry"
	"github.com/rowsift/runtime/pkg/sift"
)

// filterStages is the order in which filter stages run.
var filterStages = []string{registry.StageMatch, registry.StageWhere}

// CreateInputModule creates the loader for a resolved source path.
// The format comes from src.Format or the path extension.
func CreateInputModule(path string, src sift.SourceConfig) (input.Module, error) {
	detect := src
	detect.Path = path
	format, err := input.DetectFormat(detect)
	if err != nil {
		return nil, err
	}

	constructor := registry.GetInputConstructor(format)
	if constructor == nil {
		return nil, errhandling.NewSourceUnreadable(path, "no loader registered for format "+format, nil)
	}
	return constructor(path, src)
}

// CreateFilterModules creates the filter stages the job uses, in pipeline order.
func CreateFilterModules(job *sift.Job) ([]filter.Module, error) {
	modules := make([]filter.Module, 0, len(filterStages))
	for _, stage := range filterStages {
		constructor := registry.GetFilterConstructor(stage)
		if constructor == nil {
			continue
		}
		module, err := constructor(job)
		if err != nil {
			return nil, fmt.Errorf("creating %s stage: %w", stage, err)
		}
		if module != nil {
			modules = append(modules, module)
		}
	}
	return modules, nil
}

// CreateProjectModule creates the projector for the job's output columns.
func CreateProjectModule(job *sift.Job) *filter.ProjectModule {
	return filter.NewProjectModule(job.OutputColumns)
}

// CreateOutputModules creates one sink per configured output.
func CreateOutputModules(cfgs []sift.SinkConfig) ([]output.Module, error) {
	modules := make([]output.Module, 0, len(cfgs))
	for i, cfg := range cfgs {
		constructor := registry.GetOutputConstructor(cfg.Format)
		if constructor == nil {
			return nil, errhandling.NewInvalidConfig(fmt.Sprintf("output %d: unsupported format %q", i, cfg.Format), nil)
		}
		module, err := constructor(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating output %d: %w", i, err)
		}
		modules = append(modules, module)
	}
	return modules, nil
}
