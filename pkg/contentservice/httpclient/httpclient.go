// Package httpclient is a content service adapter speaking JSON over HTTP.
//
// Requests are made against a base URL:
//
//	GET {base}/{ns}/{locId}/pages?path={urlPath}&includes={include|exclude}
//	GET {base}/{ns}/{locId}/pages/{pageId}?includes={include|exclude}
//	GET {base}/{ns}/{locId}/entities/{componentId}-{templateId}
//	GET {base}/{ns}/{locId}/sitemap/tree?root={id}&includeAncestors={bool}&depth={n}
//	GET {base}/{ns}/{locId}/sitemap/subtree?root={id}&includeAncestors={bool}&depth={n}
//
// A 404 maps to errors.ErrNotFound. Transport failures and 5xx responses that
// persist after retries map to errors.ErrUpstreamUnavailable; anything else
// unexpected maps to errors.ErrUpstreamProtocol.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice"
	dxaerrors "github.com/wangzhengdao/dxa-web-application-dotnet/pkg/errors"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

var tracer = otel.Tracer("pkg/contentservice/httpclient")

const (
	defaultTimeout          = 10 * time.Second
	defaultRetryMax         = 3
	defaultMaxResponseBytes = 10 << 20
)

type ClientOption func(c *Client)

func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTimeout bounds every request, including retries.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithRetryMax(retryMax int) ClientOption {
	return func(c *Client) {
		c.retryMax = retryMax
	}
}

// WithRetryWait sets the bounds of the exponential wait between retries.
func WithRetryWait(minWait, maxWait time.Duration) ClientOption {
	return func(c *Client) {
		c.retryWaitMin = minWait
		c.retryWaitMax = maxWait
	}
}

// WithMaxResponseBytes bounds the size of a response body. Larger bodies fail
// with errors.ErrUpstreamProtocol.
func WithMaxResponseBytes(n int64) ClientOption {
	return func(c *Client) {
		c.maxResponseBytes = n
	}
}

// WithHTTPClient sets the client retries are made with. Its transport is
// wrapped for tracing.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.base = hc
	}
}

type Client struct {
	baseURL  *url.URL
	logger   logger.Logger
	timeout  time.Duration
	retryMax int
	base     *http.Client

	retryWaitMin time.Duration
	retryWaitMax time.Duration

	maxResponseBytes int64

	httpClient *http.Client
}

var _ contentservice.Client = (*Client)(nil)

func New(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid content service url '%s': %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid content service url '%s': scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:  u,
		logger:   logger.NewNoopLogger(),
		timeout:  defaultTimeout,
		retryMax: defaultRetryMax,
		base:     &http.Client{},

		retryWaitMin: 100 * time.Millisecond,
		retryWaitMax: 2 * time.Second,

		maxResponseBytes: defaultMaxResponseBytes,
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := c.base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.base.Transport = otelhttp.NewTransport(transport)

	rc := retryablehttp.NewClient()
	rc.HTTPClient = c.base
	rc.RetryMax = c.retryMax
	rc.RetryWaitMin = c.retryWaitMin
	rc.RetryWaitMax = c.retryWaitMax
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c.httpClient = rc.StandardClient()
	c.httpClient.Timeout = c.timeout

	return c, nil
}

func (c *Client) endpoint(loc models.Localization, query url.Values, elems ...string) string {
	ns := string(loc.Namespace)
	if ns == "" {
		ns = string(models.NamespaceSites)
	}

	u := *c.baseURL
	u.Path = path.Join(append([]string{"/", c.baseURL.Path, ns, loc.ID}, elems...)...)
	u.RawQuery = query.Encode()
	return u.String()
}

// get fetches a url and returns the body of a 200 response. what describes
// the item for error messages.
func (c *Client) get(ctx context.Context, loc models.Localization, what, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, dxaerrors.UpstreamProtocolError(fmt.Sprintf("building request for %s", what), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnWithContext(ctx, "content service unreachable", zap.String("item", what), zap.Error(err))
		return nil, dxaerrors.UpstreamUnavailableError(fmt.Sprintf("retrieving %s", what), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, dxaerrors.UpstreamUnavailableError(fmt.Sprintf("reading %s", what), err)
	}
	if int64(len(body)) > c.maxResponseBytes {
		return nil, dxaerrors.UpstreamProtocolError(fmt.Sprintf("reading %s", what),
			fmt.Errorf("response body exceeds %d bytes", c.maxResponseBytes))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, dxaerrors.ItemNotFoundError(what, loc.ID)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, dxaerrors.UpstreamUnavailableError(fmt.Sprintf("retrieving %s", what), fmt.Errorf("status %d", resp.StatusCode))
	default:
		return nil, dxaerrors.UpstreamProtocolError(fmt.Sprintf("retrieving %s", what), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func (c *Client) getModelData(ctx context.Context, loc models.Localization, what, target string) (*models.ModelData, error) {
	body, err := c.get(ctx, loc, what, target)
	if err != nil {
		return nil, err
	}

	data, err := models.ParseModelData(body)
	if err != nil {
		return nil, dxaerrors.UpstreamProtocolError(fmt.Sprintf("decoding %s", what), err)
	}
	return data, nil
}

func (c *Client) getTree(ctx context.Context, loc models.Localization, what, target string) ([]*models.SitemapItem, error) {
	body, err := c.get(ctx, loc, what, target)
	if err != nil {
		return nil, err
	}

	var items []*models.SitemapItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, dxaerrors.UpstreamProtocolError(fmt.Sprintf("decoding %s", what), err)
	}
	return items, nil
}

func (c *Client) FetchPageByPath(ctx context.Context, loc models.Localization, urlPath string, includes contentservice.IncludeMode) (*models.ModelData, error) {
	ctx, span := tracer.Start(ctx, "httpclient.FetchPageByPath", trace.WithAttributes(attribute.String("url_path", urlPath)))
	defer span.End()

	target := c.endpoint(loc, url.Values{"path": {urlPath}, "includes": {includes.String()}}, "pages")
	return c.getModelData(ctx, loc, "page '"+urlPath+"'", target)
}

func (c *Client) FetchPageByID(ctx context.Context, loc models.Localization, pageID int, includes contentservice.IncludeMode) (*models.ModelData, error) {
	ctx, span := tracer.Start(ctx, "httpclient.FetchPageByID", trace.WithAttributes(attribute.Int("page_id", pageID)))
	defer span.End()

	id := strconv.Itoa(pageID)
	target := c.endpoint(loc, url.Values{"includes": {includes.String()}}, "pages", id)
	return c.getModelData(ctx, loc, "page "+id, target)
}

func (c *Client) FetchEntity(ctx context.Context, loc models.Localization, componentID, templateID int) (*models.ModelData, error) {
	id := fmt.Sprintf("%d-%d", componentID, templateID)
	ctx, span := tracer.Start(ctx, "httpclient.FetchEntity", trace.WithAttributes(attribute.String("entity_id", id)))
	defer span.End()

	target := c.endpoint(loc, url.Values{}, "entities", id)
	return c.getModelData(ctx, loc, "entity "+id, target)
}

func (c *Client) FetchFullTree(ctx context.Context, loc models.Localization, rootID string, includeAncestors bool, maxDepth int) ([]*models.SitemapItem, error) {
	ctx, span := tracer.Start(ctx, "httpclient.FetchFullTree", trace.WithAttributes(attribute.String("root_id", rootID)))
	defer span.End()

	target := c.endpoint(loc, treeQuery(rootID, includeAncestors, maxDepth), "sitemap", "tree")
	return c.getTree(ctx, loc, "sitemap tree '"+rootID+"'", target)
}

func (c *Client) FetchBoundedSubtree(ctx context.Context, loc models.Localization, rootID string, depth int, includeAncestors bool) ([]*models.SitemapItem, error) {
	ctx, span := tracer.Start(ctx, "httpclient.FetchBoundedSubtree", trace.WithAttributes(attribute.String("root_id", rootID)))
	defer span.End()

	target := c.endpoint(loc, treeQuery(rootID, includeAncestors, depth), "sitemap", "subtree")
	return c.getTree(ctx, loc, "sitemap subtree '"+rootID+"'", target)
}

func treeQuery(rootID string, includeAncestors bool, depth int) url.Values {
	q := url.Values{
		"includeAncestors": {strconv.FormatBool(includeAncestors)},
		"depth":            {strconv.Itoa(depth)},
	}
	if rootID != "" {
		q.Set("root", rootID)
	}
	return q
}

// Ping checks that the content service answers at its base URL. Any HTTP
// response counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.base.Do(req)
	if err != nil {
		return dxaerrors.UpstreamUnavailableError("pinging content service", err)
	}
	_ = resp.Body.Close()
	return nil
}
