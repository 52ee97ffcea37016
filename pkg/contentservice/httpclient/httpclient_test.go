package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice"
	dxaerrors "github.com/wangzhengdao/dxa-web-application-dotnet/pkg/errors"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

var loc = models.Localization{ID: "1065", Namespace: models.NamespaceSites}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", append([]ClientOption{
		WithRetryMax(2),
		WithRetryWait(time.Millisecond, 5*time.Millisecond),
		WithTimeout(5 * time.Second),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.base.CloseIdleConnections()
	})
	return c
}

func TestFetchPageByPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tcm/1065/pages", r.URL.Path)
		assert.Equal(t, "/about.json", r.URL.Query().Get("path"))
		assert.Equal(t, "exclude", r.URL.Query().Get("includes"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"$type":"PageModelData","Id":"641","Title":"About"}`))
	})

	data, err := c.FetchPageByPath(context.Background(), loc, "/about.json", contentservice.ExcludePageRegions)
	require.NoError(t, err)
	require.Equal(t, models.PageModelDataType, data.Type())
	require.Equal(t, "641", data.String("Id"))
}

func TestFetchEntityAndPageByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tcm/1065/entities/1234-567":
			_, _ = w.Write([]byte(`{"$type":"EntityModelData","Id":"1234-567"}`))
		case "/api/tcm/1065/pages/640":
			_, _ = w.Write([]byte(`{"$type":"PageModelData","Id":"640"}`))
		default:
			http.NotFound(w, r)
		}
	})

	entity, err := c.FetchEntity(context.Background(), loc, 1234, 567)
	require.NoError(t, err)
	require.Equal(t, "1234-567", entity.String("Id"))

	page, err := c.FetchPageByID(context.Background(), loc, 640, contentservice.IncludePageRegions)
	require.NoError(t, err)
	require.Equal(t, "640", page.String("Id"))

	_, err = c.FetchPageByID(context.Background(), loc, 1, contentservice.IncludePageRegions)
	require.ErrorIs(t, err, dxaerrors.ErrNotFound)
}

func TestFetchTrees(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/api/tcm/1065/sitemap/tree":
			assert.Equal(t, "t1", q.Get("root"))
			assert.Equal(t, "10", q.Get("depth"))
			assert.Equal(t, "false", q.Get("includeAncestors"))
		case "/api/tcm/1065/sitemap/subtree":
			assert.False(t, q.Has("root"))
			assert.Equal(t, "true", q.Get("includeAncestors"))
		}
		_, _ = w.Write([]byte(`[{"Id":"t1-k10","Type":"TaxonomyNode","Items":[{"Id":"t1-p641","Type":"Page","Url":"/about"}]}]`))
	})

	items, err := c.FetchFullTree(context.Background(), loc, "t1", false, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, models.SitemapItemTypeTaxonomyNode, items[0].Type)
	require.Equal(t, "/about", items[0].Items[0].URL)

	_, err = c.FetchBoundedSubtree(context.Background(), loc, "", 2, true)
	require.NoError(t, err)
}

func TestErrorClassification(t *testing.T) {
	for _, tc := range []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{name: "not_found", status: http.StatusNotFound, expected: dxaerrors.ErrNotFound},
		{name: "server_error", status: http.StatusBadGateway, expected: dxaerrors.ErrUpstreamUnavailable},
		{name: "bad_request", status: http.StatusBadRequest, expected: dxaerrors.ErrUpstreamProtocol},
		{name: "malformed_body", status: http.StatusOK, body: `{"Id":`, expected: dxaerrors.ErrUpstreamProtocol},
		{name: "not_an_object", status: http.StatusOK, body: `[]`, expected: dxaerrors.ErrUpstreamProtocol},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := c.FetchEntity(context.Background(), loc, 1, 2)
			require.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestResponseSizeLimit(t *testing.T) {
	body := `{"$type":"EntityModelData","Id":"1-2"}`
	handler := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}

	t.Run("at_limit", func(t *testing.T) {
		c := newTestClient(t, handler, WithMaxResponseBytes(int64(len(body))))
		data, err := c.FetchEntity(context.Background(), loc, 1, 2)
		require.NoError(t, err)
		require.Equal(t, "1-2", data.String("Id"))
	})

	t.Run("over_limit", func(t *testing.T) {
		c := newTestClient(t, handler, WithMaxResponseBytes(int64(len(body))-1))
		_, err := c.FetchEntity(context.Background(), loc, 1, 2)
		require.ErrorIs(t, err, dxaerrors.ErrUpstreamProtocol)
		require.ErrorContains(t, err, "exceeds")
	})
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"Id":"1-2"}`))
	})

	data, err := c.FetchEntity(context.Background(), loc, 1, 2)
	require.NoError(t, err)
	require.Equal(t, "1-2", data.String("Id"))
	require.Equal(t, int32(3), calls.Load())
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c, err := New(baseURL, WithRetryMax(0))
	require.NoError(t, err)

	_, err = c.FetchPageByPath(context.Background(), loc, "/index.json", contentservice.IncludePageRegions)
	require.ErrorIs(t, err, dxaerrors.ErrUpstreamUnavailable)
	require.Error(t, c.Ping(context.Background()))
}

func TestNewInvalidURL(t *testing.T) {
	_, err := New("ftp://example.com")
	require.ErrorContains(t, err, "scheme must be http or https")

	_, err = New("http://[::1")
	require.Error(t, err)
}
