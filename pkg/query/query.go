// Package query executes content queries whose results are typed by a result
// type tag. Executors are registered per tag in a Dispatcher at startup.
package query

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/deserializer"
	dxaerrors "github.com/wangzhengdao/dxa-web-application-dotnet/pkg/errors"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

var tracer = otel.Tracer("pkg/query")

const DefaultPageSize = 10

// Params are the inputs of a query.
type Params struct {
	Localization models.Localization
	Text         string
	Start        int
	PageSize     int
}

// Model receives the outcome of a query. Results only holds entities whose
// content is of the requested result type.
type Model struct {
	ResultType string                `json:"resultType"`
	Text       string                `json:"text"`
	Start      int                   `json:"start"`
	PageSize   int                   `json:"pageSize"`
	Total      int                   `json:"total"`
	HasMore    bool                  `json:"hasMore"`
	Results    []*models.EntityModel `json:"results"`
}

// Source looks up the entity data matching a free text query.
type Source interface {
	Search(ctx context.Context, loc models.Localization, text string) ([]*models.ModelData, error)
}

// Executor runs a query for one result type and populates model.
type Executor interface {
	ExecuteTypedQuery(ctx context.Context, resultType string, params Params, model *Model) error
}

// TypedExecutor runs queries whose results have content of type T.
type TypedExecutor[T models.Content] struct {
	source       Source
	deserializer *deserializer.Deserializer
	logger       logger.Logger
}

var _ Executor = (*TypedExecutor[*models.Article])(nil)

func NewTypedExecutor[T models.Content](source Source, d *deserializer.Deserializer, l logger.Logger) *TypedExecutor[T] {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &TypedExecutor[T]{source: source, deserializer: d, logger: l}
}

func (e *TypedExecutor[T]) ExecuteTypedQuery(ctx context.Context, resultType string, params Params, model *Model) error {
	data, err := e.source.Search(ctx, params.Localization, params.Text)
	if err != nil {
		return err
	}

	var matched []*models.EntityModel
	for _, d := range data {
		entity, err := e.deserializer.Entity(d, params.Localization)
		if err != nil {
			e.logger.WarnWithContext(ctx, "skipping query result that could not be deserialized",
				zap.String("result_type", resultType),
				zap.Error(err))
			continue
		}
		if _, ok := entity.Content.(T); ok {
			matched = append(matched, entity)
		}
	}

	start, pageSize := params.Start, params.PageSize
	if start < 0 {
		start = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	model.ResultType = resultType
	model.Text = params.Text
	model.Start = start
	model.PageSize = pageSize
	model.Total = len(matched)
	model.Results = nil
	if start < len(matched) {
		end := min(start+pageSize, len(matched))
		model.Results = matched[start:end]
	}
	model.HasMore = start+pageSize < len(matched)

	return nil
}

// Dispatcher selects the executor registered for a result type tag.
type Dispatcher struct {
	executors map[string]Executor
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{executors: map[string]Executor{}}
}

// Register adds the executor for a result type. A tag can be registered once.
func (d *Dispatcher) Register(resultType string, e Executor) error {
	if resultType == "" {
		return fmt.Errorf("result type must not be empty")
	}
	if e == nil {
		return fmt.Errorf("executor for result type '%s' must not be nil", resultType)
	}
	if _, ok := d.executors[resultType]; ok {
		return fmt.Errorf("an executor for result type '%s' is already registered", resultType)
	}
	d.executors[resultType] = e
	return nil
}

func (d *Dispatcher) MustRegister(resultType string, e Executor) {
	if err := d.Register(resultType, e); err != nil {
		panic(err)
	}
}

// ResultTypes returns the registered result type tags in sorted order.
func (d *Dispatcher) ResultTypes() []string {
	out := make([]string, 0, len(d.executors))
	for t := range d.executors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Execute runs the query with the executor registered for resultType. An
// unknown result type is an invalid request.
func (d *Dispatcher) Execute(ctx context.Context, resultType string, params Params) (*Model, error) {
	ctx, span := tracer.Start(ctx, "query.Execute", trace.WithAttributes(
		attribute.String("result_type", resultType),
		attribute.String("text", params.Text),
	))
	defer span.End()

	e, ok := d.executors[resultType]
	if !ok {
		return nil, fmt.Errorf("no executor registered for result type '%s': %w", resultType, dxaerrors.ErrInvalidRequest)
	}

	model := &Model{}
	if err := e.ExecuteTypedQuery(ctx, resultType, params, model); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return model, nil
}

// NewCoreDispatcher registers executors for the core content types under their
// view names.
func NewCoreDispatcher(source Source, d *deserializer.Deserializer, l logger.Logger) *Dispatcher {
	dispatcher := NewDispatcher()
	dispatcher.MustRegister("Article", NewTypedExecutor[*models.Article](source, d, l))
	dispatcher.MustRegister("Image", NewTypedExecutor[*models.Image](source, d, l))
	dispatcher.MustRegister("Teaser", NewTypedExecutor[*models.Teaser](source, d, l))
	return dispatcher
}
