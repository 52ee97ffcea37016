// Package resolve contains the commands resolving view models from a content service.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/wangzhengdao/dxa-web-application-dotnet/cmd/util"
	"github.com/wangzhengdao/dxa-web-application-dotnet/internal/config"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/cache"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/condition"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice/httpclient"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice/memory"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/deserializer"
	dxaerrors "github.com/wangzhengdao/dxa-web-application-dotnet/pkg/errors"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/query"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/resolver"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/sitemap"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/telemetry"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/typeresolver"
)

func NewResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve view models from the content service",
		Long: `Resolve view models from the content service and print them as JSON.

Content is read from the content service at --content-service-url, or from a fixture file
given with --fixtures.`,
		Args: cobra.NoArgs,
	}

	defaultConfig := config.DefaultConfig()
	flags := cmd.PersistentFlags()

	flags.String("fixtures", defaultConfig.Fixtures, "the path of a YAML or JSON fixture file to serve content from instead of a content service")

	flags.String("content-service-url", defaultConfig.ContentService.URL, "the base URL of the content service")

	flags.Duration("content-service-timeout", defaultConfig.ContentService.Timeout, "the timeout of a single content service request, including retries")

	flags.Int("content-service-retry-max", defaultConfig.ContentService.RetryMax, "the number of times a failed content service request is retried")

	flags.Int64("content-service-max-response-bytes", defaultConfig.ContentService.MaxResponseBytes, "the largest content service response body accepted")

	flags.Duration("content-service-ready-timeout", defaultConfig.ContentService.ReadyTimeout, "how long to wait for the content service to answer before giving up")

	cmd.MarkFlagsMutuallyExclusive("fixtures", "content-service-url")

	flags.Bool("cache-enabled", defaultConfig.Cache.Enabled, "enable/disable caching of resolved view models")

	flags.Int64("cache-max-entries", defaultConfig.Cache.MaxEntries, "the maximum number of view models kept in the cache")

	flags.Duration("cache-ttl", defaultConfig.Cache.TTL, "how long a cached view model is kept. 0 keeps it until invalidated or evicted")

	flags.Int("sitemap-descendant-depth", defaultConfig.Sitemap.DescendantDepth, "how many levels whole navigation trees are fetched with")

	flags.String("pages-index-page-name", defaultConfig.Pages.IndexPageName, "the file name of the page a directory URL resolves to")

	flags.String("pages-extension", defaultConfig.Pages.Extension, "the extension of published page files")

	flags.String("localization-id", defaultConfig.Localization.ID, "the id of the localization content is resolved in")

	flags.String("localization-namespace", defaultConfig.Localization.Namespace, "the CM URI namespace of the localization ('tcm' or 'ish')")

	flags.String("localization-path", defaultConfig.Localization.Path, "the URL path prefix of the localization")

	flags.String("localization-culture", defaultConfig.Localization.Culture, "the culture of the localization, e.g. 'en-US'")

	flags.Bool("localization-staging", defaultConfig.Localization.Staging, "resolve in staging mode, keeping XPM metadata")

	flags.StringSlice("conditions-rules", defaultConfig.Conditions.Rules, "CEL expressions over 'entity' and 'localization'. Entities matching any rule are removed from pages")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")

	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")

	flags.Bool("trace-otlp-tls-enabled", defaultConfig.Trace.OTLP.TLS.Enabled, "use TLS connection for trace collector")

	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none")

	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces")

	flags.Int("max-entity-fetches", defaultConfig.Concurrency.MaxEntityFetches, "the maximum number of entities fetched at once")

	// NOTE: if you add a new flag here, update the function below, too

	cmd.PersistentPreRun = bindResolveFlagsFunc(flags)

	cmd.AddCommand(
		newPageCommand(),
		newPageIDCommand(),
		newEntityCommand(),
		newSitemapCommand(),
		newSitemapRootCommand(),
		newQueryCommand(),
	)

	return cmd
}

// ReadConfig returns the dxa configuration based on the values provided in the 'config.yaml' file.
// The 'config.yaml' file is loaded from '/etc/dxa', '$HOME/.dxa', or the current working directory. If no configuration
// file is present, the default values are returned.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func newPageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page <url path>",
		Short: "Resolve the page model published at a URL path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noIncludes, _ := cmd.Flags().GetBool("no-includes")
			return withServices(cmd, func(ctx context.Context, s *Services) (any, error) {
				return s.Pages.ResolvePage(ctx, args[0], s.Localization, !noIncludes)
			})
		},
	}
	cmd.Flags().Bool("no-includes", false, "do not merge the regions of include pages")
	return cmd
}

func newPageIDCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page-id <page id>",
		Short: "Resolve a page model by its numeric CM id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageID, err := strconv.Atoi(args[0])
			if err != nil || pageID <= 0 {
				return fmt.Errorf("invalid page id '%s': %w", args[0], dxaerrors.ErrInvalidRequest)
			}
			noIncludes, _ := cmd.Flags().GetBool("no-includes")
			return withServices(cmd, func(ctx context.Context, s *Services) (any, error) {
				return s.Pages.ResolvePageByID(ctx, pageID, s.Localization, !noIncludes)
			})
		},
	}
	cmd.Flags().Bool("no-includes", false, "do not merge the regions of include pages")
	return cmd
}

func newEntityCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <component id>-<template id>...",
		Short: "Resolve one or more entity models",
		Long:  "Resolve entity models by their '<component id>-<template id>' ids. Several ids print a JSON list in the same order.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, s *Services) (any, error) {
				if len(args) == 1 {
					return s.Pages.ResolveEntity(ctx, args[0], s.Localization)
				}
				return s.Pages.ResolveEntities(ctx, args, s.Localization)
			})
		},
	}
}

func newSitemapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemap [parent id]",
		Short: "Resolve the navigation items below a sitemap node",
		Long:  "Resolve the navigation items below a sitemap node. Without a parent id the root of the navigation is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID := ""
			if len(args) == 1 {
				parentID = args[0]
			}
			levels, _ := cmd.Flags().GetInt("levels")
			includeAncestors, _ := cmd.Flags().GetBool("include-ancestors")
			return withServices(cmd, func(ctx context.Context, s *Services) (any, error) {
				return s.Sitemap.GetChildren(ctx, parentID, s.Localization, includeAncestors, levels)
			})
		},
	}
	cmd.Flags().Int("levels", sitemap.AllLevels, "the number of levels to resolve below the parent. -1 resolves all")
	cmd.Flags().Bool("include-ancestors", false, "return the path from the root down to the parent as well")
	return cmd
}

func newSitemapRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sitemap-root",
		Short: "Resolve the whole navigation below a synthetic root node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, func(ctx context.Context, s *Services) (any, error) {
				return s.Sitemap.GetSitemapRoot(ctx, s.Localization)
			})
		},
	}
}

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <result type> [text]",
		Short: "Run a content query returning entities of one result type",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := query.Params{}
			if len(args) == 2 {
				params.Text = args[1]
			}
			params.Start, _ = cmd.Flags().GetInt("start")
			params.PageSize, _ = cmd.Flags().GetInt("page-size")
			return withServices(cmd, func(ctx context.Context, s *Services) (any, error) {
				if s.Queries == nil {
					return nil, fmt.Errorf("the content service does not support queries: %w", dxaerrors.ErrInvalidRequest)
				}
				params.Localization = s.Localization
				return s.Queries.Execute(ctx, args[0], params)
			})
		},
	}
	cmd.Flags().Int("start", 0, "the index of the first result to return")
	cmd.Flags().Int("page-size", query.DefaultPageSize, "the maximum number of results to return")
	return cmd
}

// withServices builds the services from the current configuration, runs fn and
// prints its result as JSON.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, s *Services) (any, error)) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Verify(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := NewServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			s.Logger.Error("failed to release resources", zap.Error(err))
		}
	}()

	v, err := fn(ctx, s)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), v)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Services are the resolvers built from one configuration.
type Services struct {
	Logger       logger.Logger
	Localization models.Localization
	Pages        *resolver.Resolver
	Sitemap      *sitemap.Resolver

	// Queries is nil when the content service cannot search.
	Queries *query.Dispatcher

	closers []func() error
}

// NewServices wires the content service, cache, conditional entity rules and
// resolvers described by cfg.
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	l, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Logger: l,
		Localization: models.Localization{
			ID:          cfg.Localization.ID,
			Namespace:   models.ContentNamespace(cfg.Localization.Namespace),
			Path:        cfg.Localization.Path,
			Culture:     cfg.Localization.Culture,
			StagingMode: cfg.Localization.Staging,
		},
	}
	s.telemetryConfig(cfg)

	client, err := s.contentServiceConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}

	types := typeresolver.New(typeresolver.WithCoreTypes())
	d := deserializer.New(types, deserializer.WithLogger(l))

	evaluator, err := condition.NewEvaluator(cfg.Conditions.Rules, condition.WithLogger(l))
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}

	resolverOpts := []resolver.ResolverOption{
		resolver.WithLogger(l),
		resolver.WithCachingEnabled(cfg.Cache.Enabled),
		resolver.WithPageNaming(cfg.Pages.IndexPageName, cfg.Pages.Extension),
		resolver.WithMaxEntityFetches(cfg.Concurrency.MaxEntityFetches),
	}
	if len(evaluator.Rules()) > 0 {
		resolverOpts = append(resolverOpts, resolver.WithConditionalEntityEvaluator(evaluator))
	}
	if cfg.Cache.Enabled {
		depCache, err := cache.New(
			cache.WithLogger(l),
			cache.WithMaxEntries(cfg.Cache.MaxEntries),
			cache.WithTTL(cfg.Cache.TTL),
		)
		if err != nil {
			return nil, errors.Join(err, s.Close())
		}
		s.closers = append(s.closers, func() error {
			depCache.Close()
			return nil
		})
		resolverOpts = append(resolverOpts, resolver.WithCache(depCache))
	}

	s.Pages = resolver.New(client, d, resolverOpts...)
	s.Sitemap = sitemap.New(client,
		sitemap.WithLogger(l),
		sitemap.WithDescendantDepth(cfg.Sitemap.DescendantDepth),
	)
	if source, ok := client.(query.Source); ok {
		s.Queries = query.NewCoreDispatcher(source, d, l)
	}

	return s, nil
}

// telemetryConfig installs the tracer provider and registers its shutdown.
func (s *Services) telemetryConfig(cfg *config.Config) {
	if !cfg.Trace.Enabled {
		otel.SetTracerProvider(telemetry.Noop())
		return
	}

	s.Logger.Info(fmt.Sprintf("tracing enabled: sampling ratio is %v and sending traces to '%s', tls: %t", cfg.Trace.SampleRatio, cfg.Trace.OTLP.Endpoint, cfg.Trace.OTLP.TLS.Enabled))

	tp := telemetry.MustNewTracerProvider(
		telemetry.WithOTLPEndpoint(cfg.Trace.OTLP.Endpoint),
		telemetry.WithOTLPTLS(cfg.Trace.OTLP.TLS.Enabled),
		telemetry.WithServiceName(cfg.Trace.ServiceName),
		telemetry.WithSamplingRatio(cfg.Trace.SampleRatio),
	)
	s.closers = append(s.closers, func() error {
		// the batch span processor can take up to 5 seconds to flush
		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
		defer cancel()
		return tp.Close(ctx)
	})
}

func (s *Services) contentServiceConfig(ctx context.Context, cfg *config.Config) (contentservice.Client, error) {
	if cfg.Fixtures != "" {
		client, err := memory.LoadFixtures(cfg.Fixtures)
		if err != nil {
			return nil, fmt.Errorf("initialize in-memory content service: %w", err)
		}
		s.Logger.Debug("serving content from fixtures", zap.String("fixtures", cfg.Fixtures))
		return client, nil
	}

	client, err := httpclient.New(cfg.ContentService.URL,
		httpclient.WithLogger(s.Logger),
		httpclient.WithTimeout(cfg.ContentService.Timeout),
		httpclient.WithRetryMax(cfg.ContentService.RetryMax),
		httpclient.WithMaxResponseBytes(cfg.ContentService.MaxResponseBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize content service client: %w", err)
	}

	if err := util.WaitUntilReady(ctx, client, cfg.ContentService.ReadyTimeout, s.Logger); err != nil {
		return nil, fmt.Errorf("content service at '%s' did not become ready: %w", cfg.ContentService.URL, err)
	}
	return client, nil
}

// Close releases what NewServices acquired, in reverse order.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
