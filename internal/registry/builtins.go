package registry

import (
	"fmt"

	"github.com/rowsift/runtime/internal/modules/filter"
	"github.com/rowsift/runtime/internal/modules/input"
	"github.com/rowsift/runtime/internal/modules/output"
	"github.com/rowsift/runtime/pkg/sift"
)

// Filter stage names, in pipeline order.
const (
	StageMatch = "match"
	StageWhere = "where"
)

func init() {
	RegisterBuiltins()
}

func registerBuiltinInputModules() {
	RegisterInput(input.FormatXLSX, func(path string, src sift.SourceConfig) (input.Module, error) {
		return input.NewXLSXLoader(path, src)
	})
	RegisterInput(input.FormatCSV, func(path string, src sift.SourceConfig) (input.Module, error) {
		return input.NewCSVLoader(path, src, input.FormatCSV)
	})
	RegisterInput(input.FormatTSV, func(path string, src sift.SourceConfig) (input.Module, error) {
		return input.NewCSVLoader(path, src, input.FormatTSV)
	})
	RegisterInput(input.FormatJSON, func(path string, src sift.SourceConfig) (input.Module, error) {
		return input.NewJSONLoader(path, src)
	})
}

func registerBuiltinFilterModules() {
	// match - per-column equality / any-of constraints
	RegisterFilter(StageMatch, func(job *sift.Job) (filter.Module, error) {
		module, err := filter.NewMatchFromConfig(job.Filters)
		if err != nil {
			return nil, fmt.Errorf("invalid filters: %w", err)
		}
		return module, nil
	})

	// where - optional expr predicate
	RegisterFilter(StageWhere, func(job *sift.Job) (filter.Module, error) {
		if job.Where == "" {
			return nil, nil
		}
		return filter.NewExpressionFromConfig(filter.ExpressionConfig{
			Expression: job.Where,
			OnError:    job.OnExpressionError,
		})
	})
}

func registerBuiltinOutputModules() {
	RegisterOutput(output.FormatXLSX, func(cfg sift.SinkConfig) (output.Module, error) {
		return output.NewXLSXSink(cfg)
	})
	RegisterOutput(output.FormatJSON, func(cfg sift.SinkConfig) (output.Module, error) {
		return output.NewJSONSink(cfg)
	})
	RegisterOutput(output.FormatCSV, func(cfg sift.SinkConfig) (output.Module, error) {
		return output.NewCSVSink(cfg)
	})
	RegisterOutput(output.FormatSQLite, func(cfg sift.SinkConfig) (output.Module, error) {
		return output.NewSQLiteSink(cfg)
	})
}
