package resolve

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wangzhengdao/dxa-web-application-dotnet/cmd/util"
)

// bindResolveFlagsFunc binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func bindResolveFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		util.MustBindPFlag("fixtures", flags.Lookup("fixtures"))
		util.MustBindEnv("fixtures", "DXA_FIXTURES")

		util.MustBindPFlag("contentService.url", flags.Lookup("content-service-url"))
		util.MustBindEnv("contentService.url", "DXA_CONTENT_SERVICE_URL", "DXA_CONTENTSERVICE_URL")

		util.MustBindPFlag("contentService.timeout", flags.Lookup("content-service-timeout"))
		util.MustBindEnv("contentService.timeout", "DXA_CONTENT_SERVICE_TIMEOUT", "DXA_CONTENTSERVICE_TIMEOUT")

		util.MustBindPFlag("contentService.retryMax", flags.Lookup("content-service-retry-max"))
		util.MustBindEnv("contentService.retryMax", "DXA_CONTENT_SERVICE_RETRY_MAX", "DXA_CONTENTSERVICE_RETRYMAX")

		util.MustBindPFlag("contentService.maxResponseBytes", flags.Lookup("content-service-max-response-bytes"))
		util.MustBindEnv("contentService.maxResponseBytes", "DXA_CONTENT_SERVICE_MAX_RESPONSE_BYTES", "DXA_CONTENTSERVICE_MAXRESPONSEBYTES")

		util.MustBindPFlag("contentService.readyTimeout", flags.Lookup("content-service-ready-timeout"))
		util.MustBindEnv("contentService.readyTimeout", "DXA_CONTENT_SERVICE_READY_TIMEOUT", "DXA_CONTENTSERVICE_READYTIMEOUT")

		util.MustBindPFlag("cache.enabled", flags.Lookup("cache-enabled"))
		util.MustBindEnv("cache.enabled", "DXA_CACHE_ENABLED")

		util.MustBindPFlag("cache.maxEntries", flags.Lookup("cache-max-entries"))
		util.MustBindEnv("cache.maxEntries", "DXA_CACHE_MAX_ENTRIES", "DXA_CACHE_MAXENTRIES")

		util.MustBindPFlag("cache.ttl", flags.Lookup("cache-ttl"))
		util.MustBindEnv("cache.ttl", "DXA_CACHE_TTL")

		util.MustBindPFlag("sitemap.descendantDepth", flags.Lookup("sitemap-descendant-depth"))
		util.MustBindEnv("sitemap.descendantDepth", "DXA_SITEMAP_DESCENDANT_DEPTH", "DXA_SITEMAP_DESCENDANTDEPTH")

		util.MustBindPFlag("pages.indexPageName", flags.Lookup("pages-index-page-name"))
		util.MustBindEnv("pages.indexPageName", "DXA_PAGES_INDEX_PAGE_NAME", "DXA_PAGES_INDEXPAGENAME")

		util.MustBindPFlag("pages.extension", flags.Lookup("pages-extension"))
		util.MustBindEnv("pages.extension", "DXA_PAGES_EXTENSION")

		util.MustBindPFlag("localization.id", flags.Lookup("localization-id"))
		util.MustBindEnv("localization.id", "DXA_LOCALIZATION_ID")

		util.MustBindPFlag("localization.namespace", flags.Lookup("localization-namespace"))
		util.MustBindEnv("localization.namespace", "DXA_LOCALIZATION_NAMESPACE")

		util.MustBindPFlag("localization.path", flags.Lookup("localization-path"))
		util.MustBindEnv("localization.path", "DXA_LOCALIZATION_PATH")

		util.MustBindPFlag("localization.culture", flags.Lookup("localization-culture"))
		util.MustBindEnv("localization.culture", "DXA_LOCALIZATION_CULTURE")

		util.MustBindPFlag("localization.staging", flags.Lookup("localization-staging"))
		util.MustBindEnv("localization.staging", "DXA_LOCALIZATION_STAGING")

		util.MustBindPFlag("conditions.rules", flags.Lookup("conditions-rules"))
		util.MustBindEnv("conditions.rules", "DXA_CONDITIONS_RULES")

		util.MustBindPFlag("log.format", flags.Lookup("log-format"))
		util.MustBindEnv("log.format", "DXA_LOG_FORMAT")

		util.MustBindPFlag("log.level", flags.Lookup("log-level"))
		util.MustBindEnv("log.level", "DXA_LOG_LEVEL")

		util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
		util.MustBindEnv("trace.enabled", "DXA_TRACE_ENABLED")

		util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
		util.MustBindEnv("trace.otlp.endpoint", "DXA_TRACE_OTLP_ENDPOINT")

		util.MustBindPFlag("trace.otlp.tls.enabled", flags.Lookup("trace-otlp-tls-enabled"))
		util.MustBindEnv("trace.otlp.tls.enabled", "DXA_TRACE_OTLP_TLS_ENABLED")

		util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
		util.MustBindEnv("trace.sampleRatio", "DXA_TRACE_SAMPLE_RATIO", "DXA_TRACE_SAMPLERATIO")

		util.MustBindPFlag("trace.serviceName", flags.Lookup("trace-service-name"))
		util.MustBindEnv("trace.serviceName", "DXA_TRACE_SERVICE_NAME", "DXA_TRACE_SERVICENAME")

		util.MustBindPFlag("concurrency.maxEntityFetches", flags.Lookup("max-entity-fetches"))
		util.MustBindEnv("concurrency.maxEntityFetches", "DXA_MAX_ENTITY_FETCHES", "DXA_CONCURRENCY_MAXENTITYFETCHES")
	}
}
