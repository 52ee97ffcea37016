package condition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

var testLocalization = models.Localization{
	ID:        "1065",
	Namespace: models.NamespaceSites,
	Path:      "/en",
	Culture:   "en-US",
}

func teaser(metadata map[string]string) *models.EntityModel {
	return &models.EntityModel{
		ID:       "1235-567",
		Title:    "Teaser",
		MvcData:  models.MvcData{AreaName: "Core", ControllerName: "Entity", ViewName: "Teaser"},
		Metadata: metadata,
	}
}

func TestCompile(t *testing.T) {
	var tests = []struct {
		name       string
		expression string
		err        string
	}{
		{
			name:       "valid",
			expression: "entity.view == 'Teaser'",
		},
		{
			name:       "valid_localization",
			expression: "localization.culture.startsWith('en') && !localization.staging",
		},
		{
			name:       "undeclared_variable",
			expression: "page.id == '1'",
			err:        "undeclared reference to 'page'",
		},
		{
			name:       "non_bool_output",
			expression: "entity.title",
			err:        "expected a bool expression output",
		},
		{
			name:       "syntax_error",
			expression: "entity.view ==",
			err:        "failed to compile expression on rule 'r'",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rule, err := Compile("r", test.expression)
			if test.err != "" {
				require.ErrorContains(t, err, test.err)
				var compileErr *CompilationError
				require.ErrorAs(t, err, &compileErr)
				require.Equal(t, test.expression, compileErr.Expression)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expression, rule.Expression)
		})
	}
}

func TestShouldSuppress(t *testing.T) {
	evaluator, err := NewEvaluator([]string{
		"entity.view == 'Teaser' && 'segment' in entity.metadata && entity.metadata.segment == 'internal'",
		"localization.path == '/blocked'",
	})
	require.NoError(t, err)
	require.Len(t, evaluator.Rules(), 2)

	require.True(t, evaluator.ShouldSuppress(teaser(map[string]string{"segment": "internal"}), testLocalization))
	require.False(t, evaluator.ShouldSuppress(teaser(map[string]string{"segment": "public"}), testLocalization))
	require.False(t, evaluator.ShouldSuppress(teaser(nil), testLocalization))

	blocked := testLocalization
	blocked.Path = "/blocked"
	require.True(t, evaluator.ShouldSuppress(teaser(nil), blocked))
}

func TestShouldSuppressWithoutRules(t *testing.T) {
	evaluator, err := NewEvaluator(nil)
	require.NoError(t, err)
	require.False(t, evaluator.ShouldSuppress(teaser(nil), testLocalization))
}

func TestEvaluationErrorDoesNotSuppress(t *testing.T) {
	l, logs := logger.NewObserverLogger("warn")

	// metadata.segment is missing, so the first rule fails at runtime
	evaluator, err := NewEvaluator([]string{
		"entity.metadata.segment == 'internal'",
	}, WithLogger(l))
	require.NoError(t, err)

	require.False(t, evaluator.ShouldSuppress(teaser(map[string]string{}), testLocalization))
	require.Equal(t, 1, logs.FilterMessage("conditional entity rule failed").Len())

	_, err = evaluator.Rules()[0].Evaluate(teaser(map[string]string{}), testLocalization)
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	require.Equal(t, "rule[0]", evalErr.Rule)
}

func TestNewEvaluatorRejectsInvalidRule(t *testing.T) {
	_, err := NewEvaluator([]string{"entity.view == 'Teaser'", "entity.id"})
	require.ErrorContains(t, err, "rule[1]")
}

func TestVariables(t *testing.T) {
	vars := EntityVariables(teaser(map[string]string{"a": "b"}))
	require.Equal(t, "1235-567", vars["id"])
	require.Equal(t, "Core", vars["area"])
	require.Equal(t, map[string]any{"a": "b"}, vars["metadata"])

	locVars := LocalizationVariables(testLocalization)
	require.Equal(t, "tcm", locVars["namespace"])
	require.Equal(t, false, locVars["staging"])
}
