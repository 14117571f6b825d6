package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/record"
)

// Error codes for the expression module
const (
	ErrCodeInvalidExpression = "INVALID_EXPRESSION"
	ErrCodeEvaluationFailed  = "EVALUATION_FAILED"
)

// Evaluation error policies
const (
	OnErrorFail = "fail"
	OnErrorSkip = "skip"
)

// ErrInvalidExpression is returned when the expression does not compile.
var ErrInvalidExpression = errors.New("invalid expression syntax")

// ExpressionConfig configures the where filter.
type ExpressionConfig struct {
	// Expression is evaluated once per record. Columns are variables;
	// names that are not identifiers are reached as $env["Col Name"].
	Expression string `json:"expression"`
	// OnError is "fail" (default) or "skip".
	OnError string `json:"onError,omitempty"`
}

// ExpressionModule keeps the rows for which an expr predicate is truthy.
// Values keep their loaded types, so numeric comparisons are numeric.
type ExpressionModule struct {
	expression string
	onError    string
	program    *vm.Program
	skipped    int
}

// ExpressionError carries context for an evaluation failure.
type ExpressionError struct {
	Code        string
	Message     string
	Expression  string
	RecordIndex int
}

func (e *ExpressionError) Error() string {
	return e.Message
}

// NewExpressionFromConfig compiles the expression. An empty expression is rejected.
func NewExpressionFromConfig(config ExpressionConfig) (*ExpressionModule, error) {
	expression := strings.TrimSpace(config.Expression)
	if expression == "" {
		return nil, errhandling.NewInvalidConfig("where expression cannot be empty", nil)
	}

	onError := config.OnError
	if onError == "" {
		onError = OnErrorFail
	}
	if onError != OnErrorFail && onError != OnErrorSkip {
		return nil, errhandling.NewInvalidConfig(fmt.Sprintf("onExpressionError must be %q or %q, got %q", OnErrorFail, OnErrorSkip, onError), nil)
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, errhandling.NewInvalidConfig("where expression", fmt.Errorf("%w: %v", ErrInvalidExpression, err))
	}

	logger.Debug("expression filter module initialized",
		slog.String("expression", expression),
		slog.String("on_error", onError))

	return &ExpressionModule{expression: expression, onError: onError, program: program}, nil
}

// Process evaluates the predicate against every record and keeps the truthy ones.
func (m *ExpressionModule) Process(ctx context.Context, table *record.Table) (*record.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.skipped = 0
	kept := make([]record.Record, 0, len(table.Records))
	for i, rec := range table.Records {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}

		out, err := expr.Run(m.program, rec.Map())
		if err != nil {
			if m.onError == OnErrorSkip {
				m.skipped++
				logger.Warn("skipping record due to expression evaluation error",
					slog.Int("record_index", i),
					slog.String("expression", m.expression),
					slog.String("error", err.Error()))
				continue
			}
			return nil, &ExpressionError{
				Code:        ErrCodeEvaluationFailed,
				Message:     fmt.Sprintf("expression evaluation failed at record %d: %v", i, err),
				Expression:  m.expression,
				RecordIndex: i,
			}
		}
		if toBool(out) {
			kept = append(kept, rec)
		}
	}
	return table.WithRecords(kept), nil
}

// Skipped returns how many records the last Process call dropped on error.
func (m *ExpressionModule) Skipped() int {
	return m.skipped
}

// Expression returns the compiled source text.
func (m *ExpressionModule) Expression() string {
	return m.expression
}

// toBool converts an expression result to a boolean.
func toBool(value interface{}) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

var _ Module = (*ExpressionModule)(nil)
