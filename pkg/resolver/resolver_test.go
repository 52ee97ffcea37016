package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/wangzhengdao/dxa-web-application-dotnet/internal/mocks"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/cache"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice/memory"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/deserializer"
	dxaerrors "github.com/wangzhengdao/dxa-web-application-dotnet/pkg/errors"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/typeresolver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	loc        = models.Localization{ID: "1065", Namespace: models.NamespaceSites, Path: "/"}
	stagingLoc = models.Localization{ID: "1065", Namespace: models.NamespaceSites, Path: "/", StagingMode: true}
)

func newDeserializer() *deserializer.Deserializer {
	return deserializer.New(typeresolver.New(typeresolver.WithCoreTypes()))
}

func newFixtureClient(t *testing.T) *memory.Client {
	t.Helper()
	c, err := memory.LoadFixtures("../contentservice/memory/testdata/site.yaml")
	require.NoError(t, err)
	return c
}

func newCache(t *testing.T) *cache.DependencyCache {
	t.Helper()
	c, err := cache.New()
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

type suppressByID map[string]bool

func (s suppressByID) ShouldSuppress(entity *models.EntityModel, _ models.Localization) bool {
	return s[entity.ID]
}

func entityIDs(page *models.PageModel, region string) []string {
	r, ok := page.Regions.Get(region)
	if !ok {
		return nil
	}
	var ids []string
	for _, e := range r.Entities {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestCanonicalURLPath(t *testing.T) {
	var tests = []struct {
		in       string
		expected string
	}{
		{in: "", expected: "/index.json"},
		{in: "/", expected: "/index.json"},
		{in: "about", expected: "/about.json"},
		{in: "/about", expected: "/about.json"},
		{in: "/about/", expected: "/about/index"},
		{in: "/a/b/", expected: "/a/b/index"},
		{in: "a/b", expected: "/a/b.json"},
		{in: "/about.json", expected: "/about.json"},
		{in: "/media/logo.png", expected: "/media/logo.png"},
		{in: "/v1.2/notes", expected: "/v1.2/notes.json"},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			require.Equal(t, test.expected, CanonicalURLPath(test.in, DefaultIndexPageName, DefaultExtension))
		})
	}

	r := New(nil, nil, WithPageNaming("default", ".html"))
	require.Equal(t, "/news/default", r.CanonicalURLPath("/news/"))
	require.Equal(t, "/default.html", r.CanonicalURLPath(""))
}

func TestResolvePage(t *testing.T) {
	r := New(newFixtureClient(t), newDeserializer(), WithCache(newCache(t)))

	page, err := r.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)
	require.Equal(t, "640", page.ID)
	require.Equal(t, "/index.json", page.URL)
	require.Equal(t, []string{"Header", "Main"}, page.Regions.Names())

	page, err = r.ResolvePage(context.Background(), "/", loc, false)
	require.NoError(t, err)
	require.Equal(t, []string{"Main"}, page.Regions.Names())
}

func TestResolvePageIndexFallback(t *testing.T) {
	r := New(newFixtureClient(t), newDeserializer())

	for _, path := range []string{"/about", "about", "/about/", "/about/index.json"} {
		page, err := r.ResolvePage(context.Background(), path, loc, true)
		require.NoError(t, err, path)
		require.Equal(t, "641", page.ID)
		require.Equal(t, "/about/index.json", page.URL)
	}
}

func TestResolvePageNotFoundAfterFallback(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	client := mocks.NewMockClient(mockController)
	gomock.InOrder(
		client.EXPECT().
			FetchPageByPath(gomock.Any(), loc, "/missing.json", contentservice.IncludePageRegions).
			Return(nil, dxaerrors.ItemNotFoundError("/missing.json", loc.ID)).
			Times(1),
		client.EXPECT().
			FetchPageByPath(gomock.Any(), loc, "/missing/index.json", contentservice.IncludePageRegions).
			Return(nil, dxaerrors.ItemNotFoundError("/missing/index.json", loc.ID)).
			Times(1),
	)

	_, err := New(client, newDeserializer()).ResolvePage(context.Background(), "/missing", loc, true)
	require.ErrorIs(t, err, dxaerrors.ErrNotFound)
	require.ErrorContains(t, err, "'/missing'")
}

func TestResolvePageIndexPathIsNotRetried(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	client := mocks.NewMockClient(mockController)
	client.EXPECT().
		FetchPageByPath(gomock.Any(), loc, "/gone/index.json", contentservice.ExcludePageRegions).
		Return(nil, dxaerrors.ItemNotFoundError("/gone/index.json", loc.ID)).
		Times(1)

	_, err := New(client, newDeserializer()).ResolvePage(context.Background(), "/gone/", loc, false)
	require.ErrorIs(t, err, dxaerrors.ErrNotFound)
}

func TestResolvePageUpstreamFailures(t *testing.T) {
	var tests = []struct {
		name     string
		err      error
		expected error
		logged   bool
	}{
		{
			name:     "protocol",
			err:      dxaerrors.UpstreamProtocolError("decoding page", errors.New("bad json")),
			expected: dxaerrors.ErrUpstreamProtocol,
			logged:   true,
		},
		{
			name:     "unclassified",
			err:      errors.New("client exception"),
			expected: dxaerrors.ErrUpstreamProtocol,
			logged:   true,
		},
		{
			name:     "unavailable",
			err:      dxaerrors.UpstreamUnavailableError("retrieving page", errors.New("connection refused")),
			expected: dxaerrors.ErrUpstreamUnavailable,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mockController := gomock.NewController(t)
			defer mockController.Finish()

			client := mocks.NewMockClient(mockController)
			client.EXPECT().
				FetchPageByPath(gomock.Any(), loc, "/about.json", contentservice.IncludePageRegions).
				Return(nil, test.err).
				Times(1)

			l, logs := logger.NewObserverLogger("debug")
			_, err := New(client, newDeserializer(), WithLogger(l)).ResolvePage(context.Background(), "/about", loc, true)
			require.ErrorIs(t, err, test.expected)
			require.ErrorIs(t, err, test.err)

			if test.logged {
				require.Equal(t, 1, logs.FilterMessage("unexpected content service failure").Len())
			} else {
				require.Equal(t, 0, logs.FilterMessage("unexpected content service failure").Len())
			}
		})
	}
}

func TestResolvePageReturnsCopies(t *testing.T) {
	c := newCache(t)
	r := New(newFixtureClient(t), newDeserializer(), WithCache(c))

	first, err := r.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)
	second, err := r.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)

	require.Equal(t, 1, c.Size())
	require.Equal(t, first, second)
	require.NotSame(t, first, second)

	first.Title = "changed"
	main, _ := first.Regions.Get("Main")
	main.Entities[0].Title = "changed"
	main.Entities = nil

	third, err := r.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)
	require.Equal(t, second, third)
}

func TestResolvePageDependencies(t *testing.T) {
	c := newCache(t)
	r := New(newFixtureClient(t), newDeserializer(), WithCache(c))

	_, err := r.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)
	_, err = r.ResolvePage(context.Background(), "/", loc, false)
	require.NoError(t, err)
	require.Equal(t, 2, c.Size())

	// only the page with includes depends on the header include page
	require.Equal(t, 1, r.Invalidate("tcm:1065-650-64"))
	require.Equal(t, 1, c.Size())

	require.Equal(t, 1, r.Invalidate("tcm:1065-640-64"))
	require.Equal(t, 0, c.Size())
}

func TestInvalidationDuringPageFetchIsNotCached(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	c := newCache(t)
	client := mocks.NewMockClient(mockController)
	gomock.InOrder(
		client.EXPECT().
			FetchPageByPath(gomock.Any(), loc, "/index.json", contentservice.IncludePageRegions).
			DoAndReturn(func(context.Context, models.Localization, string, contentservice.IncludeMode) (*models.ModelData, error) {
				// the page is republished while its old version is in flight
				c.Invalidate("tcm:1065-42-64")
				return models.MustParseModelData(`{"Id": "42", "Title": "old"}`), nil
			}).
			Times(1),
		client.EXPECT().
			FetchPageByPath(gomock.Any(), loc, "/index.json", contentservice.IncludePageRegions).
			Return(models.MustParseModelData(`{"Id": "42", "Title": "new"}`), nil).
			Times(1),
	)

	r := New(client, newDeserializer(), WithCache(c))

	page, err := r.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)
	require.Equal(t, "old", page.Title)
	require.Equal(t, 0, c.Size())

	page, err = r.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)
	require.Equal(t, "new", page.Title)
	require.Equal(t, 1, c.Size())
}

func TestInvalidationDuringEntityFetchIsNotCached(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	c := newCache(t)
	client := mocks.NewMockClient(mockController)
	gomock.InOrder(
		client.EXPECT().
			FetchEntity(gomock.Any(), loc, 1234, 567).
			DoAndReturn(func(context.Context, models.Localization, int, int) (*models.ModelData, error) {
				c.Invalidate("tcm:1065-1234")
				return models.MustParseModelData(`{"Id": "1234-567", "MvcData": {"AreaName": "Core", "ViewName": "Article"}, "Content": {"headline": "old"}}`), nil
			}).
			Times(1),
		client.EXPECT().
			FetchEntity(gomock.Any(), loc, 1234, 567).
			Return(models.MustParseModelData(`{"Id": "1234-567", "MvcData": {"AreaName": "Core", "ViewName": "Article"}, "Content": {"headline": "new"}}`), nil).
			Times(1),
	)

	r := New(client, newDeserializer(), WithCache(c))

	_, err := r.ResolveEntity(context.Background(), "1234-567", loc)
	require.NoError(t, err)
	require.Equal(t, 0, c.Size())

	entity, err := r.ResolveEntity(context.Background(), "1234-567", loc)
	require.NoError(t, err)
	require.Equal(t, "new", entity.Content.(*models.Article).Headline)
	require.Equal(t, 1, c.Size())
}

func TestResolvePageForeignExtensionIsNotRetried(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	client := mocks.NewMockClient(mockController)
	client.EXPECT().
		FetchPageByPath(gomock.Any(), loc, "/a/b.html", contentservice.IncludePageRegions).
		Return(nil, dxaerrors.ItemNotFoundError("/a/b.html", loc.ID)).
		Times(1)

	_, err := New(client, newDeserializer()).ResolvePage(context.Background(), "/a/b.html", loc, true)
	require.ErrorIs(t, err, dxaerrors.ErrNotFound)
}

func TestResolveLogsRequestFields(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	client := mocks.NewMockClient(mockController)
	client.EXPECT().
		FetchPageByPath(gomock.Any(), loc, gomock.Any(), contentservice.IncludePageRegions).
		Return(nil, dxaerrors.ItemNotFoundError("/missing.json", loc.ID)).
		Times(2)
	client.EXPECT().
		FetchEntity(gomock.Any(), loc, 1, 2).
		Return(nil, errors.New("client exception")).
		Times(1)

	l, logs := logger.NewObserverLogger("debug")
	r := New(client, newDeserializer(), WithLogger(l))

	_, err := r.ResolvePage(context.Background(), "/missing", loc, true)
	require.ErrorIs(t, err, dxaerrors.ErrNotFound)

	entries := logs.FilterMessage("page not found, trying index page").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "1065", fields["localization_id"])
	require.Equal(t, "/missing", fields["url_path"])
	require.Equal(t, "/missing.json", fields["canonical_path"])

	_, err = r.ResolveEntity(context.Background(), "1-2", loc)
	require.ErrorIs(t, err, dxaerrors.ErrUpstreamProtocol)

	entries = logs.FilterMessage("unexpected content service failure").All()
	require.Len(t, entries, 1)
	fields = entries[0].ContextMap()
	require.Equal(t, "1065", fields["localization_id"])
	require.Equal(t, "1-2", fields["entity_id"])
}

func TestPageDependencies(t *testing.T) {
	data := models.MustParseModelData(`{
		"Id": "640",
		"Regions": [
			{"Name": "Header", "IncludePageId": "650"},
			{"Name": "Main", "Regions": [{"Name": "Nested", "IncludePageId": "651"}, {"Name": "Again", "IncludePageId": "650"}]}
		]
	}`)

	require.Equal(t, []string{"tcm:1065-640-64", "tcm:1065-650-64", "tcm:1065-651-64"}, PageDependencies(data, loc))
}

func TestResolvePageNoCacheIsNotStored(t *testing.T) {
	c := newCache(t)
	r := New(newFixtureClient(t), newDeserializer(), WithCache(c))

	for i := 0; i < 2; i++ {
		page, err := r.ResolvePage(context.Background(), "/news", loc, true)
		require.NoError(t, err)
		require.True(t, page.NoCache)
		require.Equal(t, "/news.json", page.URL)
	}
	require.Equal(t, 0, c.Size())
}

func TestConditionalEntitiesAreFilteredOnCopies(t *testing.T) {
	c := newCache(t)
	client := newFixtureClient(t)

	filtering := New(client, newDeserializer(), WithCache(c), WithConditionalEntityEvaluator(suppressByID{"1234-567": true}))
	plain := New(client, newDeserializer(), WithCache(c))

	page, err := filtering.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)
	require.Empty(t, entityIDs(page, "Main"))
	require.Equal(t, []string{"99"}, entityIDs(page, "Header"))

	page, err = plain.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)
	require.Equal(t, []string{"1234-567"}, entityIDs(page, "Main"))
	require.Equal(t, 1, c.Size())
}

func TestCachingDisabled(t *testing.T) {
	c := newCache(t)
	r := New(newFixtureClient(t), newDeserializer(), WithCache(c), WithCachingEnabled(false))

	_, err := r.ResolvePage(context.Background(), "/", loc, true)
	require.NoError(t, err)
	_, err = r.ResolveEntity(context.Background(), "1234-567", loc)
	require.NoError(t, err)
	require.Equal(t, 0, c.Size())

	r.SetCachingEnabled(true)
	_, err = r.ResolveEntity(context.Background(), "1234-567", loc)
	require.NoError(t, err)
	require.Equal(t, 1, c.Size())

	require.Equal(t, 0, New(newFixtureClient(t), newDeserializer()).Invalidate("tcm:1065-1234"))
}

func TestResolvePageByID(t *testing.T) {
	r := New(newFixtureClient(t), newDeserializer(), WithCache(newCache(t)))

	page, err := r.ResolvePageByID(context.Background(), 641, loc, true)
	require.NoError(t, err)
	require.Equal(t, "About", page.Title)
	require.Equal(t, "/about/index.json", page.URL)

	_, err = r.ResolvePageByID(context.Background(), 9999, loc, true)
	require.ErrorIs(t, err, dxaerrors.ErrNotFound)
}

func TestResolveEntity(t *testing.T) {
	c := newCache(t)
	r := New(newFixtureClient(t), newDeserializer(), WithCache(c))

	entity, err := r.ResolveEntity(context.Background(), "1234-567", stagingLoc)
	require.NoError(t, err)
	require.Equal(t, "1234-567", entity.ID)
	require.IsType(t, &models.Article{}, entity.Content)
	require.Equal(t, true, entity.XpmMetadata[models.IsQueryBasedXpmMetadataKey])
	require.Equal(t, "tcm:1065-1234", entity.XpmMetadata["ComponentID"])

	// the component URI is the dependency
	require.Equal(t, 1, r.Invalidate("tcm:1065-1234"))

	entity, err = r.ResolveEntity(context.Background(), "1234-567", loc)
	require.NoError(t, err)
	require.Nil(t, entity.XpmMetadata)

	_, err = r.ResolveEntity(context.Background(), "1234-999", loc)
	require.ErrorIs(t, err, dxaerrors.ErrNotFound)
}

func TestResolveEntityInvalidID(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	// no content service call is expected for malformed ids
	r := New(mocks.NewMockClient(mockController), newDeserializer())

	for _, id := range []string{"", "1234", "1234-", "a-567", "1234-b", "1-2-3", "-1-2", "1234_567"} {
		t.Run(id, func(t *testing.T) {
			_, err := r.ResolveEntity(context.Background(), id, loc)
			require.ErrorIs(t, err, dxaerrors.ErrInvalidRequest)
			require.NotErrorIs(t, err, dxaerrors.ErrNotFound)
		})
	}
}

func TestResolveEntities(t *testing.T) {
	client := newFixtureClient(t)
	for _, id := range []string{"10-1", "11-1", "12-1", "13-1"} {
		client.PutEntity(loc.ID, id, models.MustParseModelData(`{"$type":"EntityModelData","Id":"`+id+`"}`))
	}
	r := New(client, newDeserializer(), WithCache(newCache(t)), WithMaxEntityFetches(2))

	ids := []string{"13-1", "1234-567", "10-1", "12-1", "11-1"}
	entities, err := r.ResolveEntities(context.Background(), ids, loc)
	require.NoError(t, err)
	require.Len(t, entities, len(ids))
	for i, id := range ids {
		require.Equal(t, id, entities[i].ID)
	}

	_, err = r.ResolveEntities(context.Background(), []string{"10-1", "bad"}, loc)
	require.ErrorIs(t, err, dxaerrors.ErrInvalidRequest)
}
