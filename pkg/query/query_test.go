package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice/memory"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/deserializer"
	dxaerrors "github.com/wangzhengdao/dxa-web-application-dotnet/pkg/errors"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/typeresolver"
)

var loc = models.Localization{ID: "1065", Namespace: models.NamespaceSites}

func newSource(t *testing.T) *memory.Client {
	t.Helper()

	c := memory.New()
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("%d-567", 1000+i)
		c.PutEntity(loc.ID, id, models.MustParseModelData(fmt.Sprintf(
			`{"$type":"EntityModelData","Id":%q,"MvcData":{"AreaName":"Core","ViewName":"Article"},"Content":{"headline":"Release notes %d"}}`, id, i)))
	}
	c.PutEntity(loc.ID, "2000-567", models.MustParseModelData(
		`{"$type":"EntityModelData","Id":"2000-567","MvcData":{"AreaName":"Core","ViewName":"Teaser"},"Content":{"headline":"Release teaser"}}`))
	c.PutEntity(loc.ID, "3000-567", models.MustParseModelData(
		`{"$type":"EntityModelData","Id":"3000-567","Title":"Logo","MvcData":{"AreaName":"Core","ViewName":"Image"},"Content":{"url":"/logo.png"}}`))
	return c
}

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := deserializer.New(typeresolver.New(typeresolver.WithCoreTypes()))
	return NewCoreDispatcher(newSource(t), d, nil)
}

func TestDispatchByResultType(t *testing.T) {
	dispatcher := newDispatcher(t)
	require.Equal(t, []string{"Article", "Image", "Teaser"}, dispatcher.ResultTypes())

	model, err := dispatcher.Execute(context.Background(), "Teaser", Params{Localization: loc, Text: "release"})
	require.NoError(t, err)
	require.Equal(t, 1, model.Total)
	require.Equal(t, "2000-567", model.Results[0].ID)
	require.IsType(t, &models.Teaser{}, model.Results[0].Content)

	model, err = dispatcher.Execute(context.Background(), "Image", Params{Localization: loc, Text: "logo"})
	require.NoError(t, err)
	require.Equal(t, 1, model.Total)
	require.Equal(t, "Image", model.ResultType)
}

func TestPaging(t *testing.T) {
	dispatcher := newDispatcher(t)

	var tests = []struct {
		name     string
		start    int
		pageSize int
		ids      []string
		hasMore  bool
	}{
		{name: "first_page", start: 0, pageSize: 2, ids: []string{"1001-567", "1002-567"}, hasMore: true},
		{name: "last_page", start: 4, pageSize: 2, ids: []string{"1005-567"}},
		{name: "past_the_end", start: 10, pageSize: 2},
		{name: "default_page_size", start: -1, ids: []string{"1001-567", "1002-567", "1003-567", "1004-567", "1005-567"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			model, err := dispatcher.Execute(context.Background(), "Article", Params{
				Localization: loc,
				Text:         "release notes",
				Start:        test.start,
				PageSize:     test.pageSize,
			})
			require.NoError(t, err)
			require.Equal(t, 5, model.Total)
			require.Equal(t, test.hasMore, model.HasMore)

			var ids []string
			for _, e := range model.Results {
				ids = append(ids, e.ID)
			}
			require.Equal(t, test.ids, ids)
		})
	}
}

func TestUnknownResultType(t *testing.T) {
	_, err := newDispatcher(t).Execute(context.Background(), "Product", Params{Localization: loc})
	require.ErrorIs(t, err, dxaerrors.ErrInvalidRequest)
}

func TestRegister(t *testing.T) {
	d := NewDispatcher()
	e := NewTypedExecutor[*models.Article](newSource(t), deserializer.New(typeresolver.New()), nil)

	require.NoError(t, d.Register("Article", e))
	require.ErrorContains(t, d.Register("Article", e), "already registered")
	require.Error(t, d.Register("", e))
	require.Error(t, d.Register("Teaser", nil))
	require.Panics(t, func() { d.MustRegister("Article", e) })
}

type failingSource struct{ err error }

func (s failingSource) Search(context.Context, models.Localization, string) ([]*models.ModelData, error) {
	return nil, s.err
}

func TestSourceFailure(t *testing.T) {
	upstream := dxaerrors.UpstreamUnavailableError("searching", errors.New("connection refused"))

	d := NewDispatcher()
	d.MustRegister("Article", NewTypedExecutor[*models.Article](failingSource{err: upstream}, deserializer.New(typeresolver.New()), nil))

	_, err := d.Execute(context.Background(), "Article", Params{Localization: loc})
	require.ErrorIs(t, err, dxaerrors.ErrUpstreamUnavailable)
}
