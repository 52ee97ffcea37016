// Package condition suppresses entities from resolved pages according to CEL
// rules evaluated against the entity and the request localization.
//
// Rules see two variables, both maps:
//
//	entity:       id, title, area, controller, view, metadata (map of strings)
//	localization: id, namespace, path, culture, staging
//
// An entity is suppressed when any rule evaluates to true, e.g.
//
//	entity.view == 'Teaser' && 'segment' in entity.metadata && entity.metadata.segment == 'internal'
package condition

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"
	"go.uber.org/zap"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

const (
	EntityVariable       = "entity"
	LocalizationVariable = "localization"
)

var celBaseEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable(EntityVariable, cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable(LocalizationVariable, cel.MapType(cel.StringType, cel.DynType)),
		cel.EagerlyValidateDeclarations(true),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to construct CEL base env: %v", err))
	}

	celBaseEnv = env
}

// Rule is a compiled suppression rule.
type Rule struct {
	Name       string
	Expression string

	program cel.Program
}

// Compile validates expression and returns a rule that can be evaluated. The
// expression must produce a bool.
func Compile(name, expression string) (*Rule, error) {
	source := common.NewStringSource(expression, name)
	ast, issues := celBaseEnv.CompileSource(source)
	if issues != nil {
		if err := issues.Err(); err != nil {
			return nil, &CompilationError{Rule: name, Expression: expression, Cause: err}
		}
	}

	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, &CompilationError{
			Rule:       name,
			Expression: expression,
			Cause:      fmt.Errorf("expected a bool expression output, but got '%s'", ast.OutputType()),
		}
	}

	prg, err := celBaseEnv.Program(ast)
	if err != nil {
		return nil, &CompilationError{
			Rule:       name,
			Expression: expression,
			Cause:      fmt.Errorf("expression construction: %w", err),
		}
	}

	return &Rule{Name: name, Expression: expression, program: prg}, nil
}

// Evaluate reports whether the rule matches the entity.
func (r *Rule) Evaluate(entity *models.EntityModel, loc models.Localization) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{
		EntityVariable:       EntityVariables(entity),
		LocalizationVariable: LocalizationVariables(loc),
	})
	if err != nil {
		return false, &EvaluationError{Rule: r.Name, Cause: err}
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, &EvaluationError{Rule: r.Name, Cause: fmt.Errorf("expected a bool result, got %T", out.Value())}
	}
	return matched, nil
}

func EntityVariables(e *models.EntityModel) map[string]any {
	metadata := map[string]any{}
	for k, v := range e.Metadata {
		metadata[k] = v
	}
	return map[string]any{
		"id":         e.ID,
		"title":      e.Title,
		"area":       e.MvcData.AreaName,
		"controller": e.MvcData.ControllerName,
		"view":       e.MvcData.ViewName,
		"metadata":   metadata,
	}
}

func LocalizationVariables(loc models.Localization) map[string]any {
	return map[string]any{
		"id":        loc.ID,
		"namespace": string(loc.Namespace),
		"path":      loc.Path,
		"culture":   loc.Culture,
		"staging":   loc.StagingMode,
	}
}

type EvaluatorOption func(e *Evaluator)

func WithLogger(l logger.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// Evaluator applies a set of rules. It is safe for concurrent use.
type Evaluator struct {
	rules  []*Rule
	logger logger.Logger
}

// NewEvaluator compiles the expressions into rules named after their position.
func NewEvaluator(expressions []string, opts ...EvaluatorOption) (*Evaluator, error) {
	e := &Evaluator{
		logger: logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	for i, expr := range expressions {
		rule, err := Compile(fmt.Sprintf("rule[%d]", i), expr)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, rule)
	}

	return e, nil
}

func (e *Evaluator) Rules() []*Rule {
	return append([]*Rule(nil), e.rules...)
}

// ShouldSuppress reports whether any rule matches. A rule that fails to
// evaluate is logged and does not suppress the entity.
func (e *Evaluator) ShouldSuppress(entity *models.EntityModel, loc models.Localization) bool {
	for _, rule := range e.rules {
		matched, err := rule.Evaluate(entity, loc)
		if err != nil {
			e.logger.Warn("conditional entity rule failed",
				zap.String("entity_id", entity.ID),
				zap.Error(err))
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
