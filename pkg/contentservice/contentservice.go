// Package contentservice defines the contract of the remote content service the
// resolution layer reads pages, entities and navigation from.
package contentservice

import (
	"context"
	"strings"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

// IncludeMode controls whether include pages are expanded into page regions.
type IncludeMode int

const (
	IncludePageRegions IncludeMode = iota
	ExcludePageRegions
)

// IncludeModeFor maps the addIncludes flag of a page request.
func IncludeModeFor(addIncludes bool) IncludeMode {
	if addIncludes {
		return IncludePageRegions
	}
	return ExcludePageRegions
}

func (m IncludeMode) String() string {
	if m == ExcludePageRegions {
		return "exclude"
	}
	return "include"
}

// Client is implemented by content service adapters. Every method returns an
// error matching errors.ErrNotFound when the item does not exist, and
// errors.ErrUpstreamUnavailable or errors.ErrUpstreamProtocol for transport and
// response failures.
//
// The tree methods return navigation nodes as follows:
//   - an empty rootID addresses the conceptual root: the top-level taxonomy
//     nodes are returned, expanded the requested number of levels;
//   - FetchFullTree on a taxonomy root id returns the root's children;
//   - any other id yields a single wrapper node for rootID, nested inside its
//     ancestors when includeAncestors is set.
//
//go:generate mockgen -source contentservice.go -destination ../../internal/mocks/mock_contentservice.go -package mocks Client
type Client interface {
	FetchPageByPath(ctx context.Context, loc models.Localization, urlPath string, includes IncludeMode) (*models.ModelData, error)
	FetchPageByID(ctx context.Context, loc models.Localization, pageID int, includes IncludeMode) (*models.ModelData, error)
	FetchEntity(ctx context.Context, loc models.Localization, componentID, templateID int) (*models.ModelData, error)

	// FetchFullTree returns the navigation tree below rootID, at most maxDepth levels deep.
	FetchFullTree(ctx context.Context, loc models.Localization, rootID string, includeAncestors bool, maxDepth int) ([]*models.SitemapItem, error)

	// FetchBoundedSubtree returns the navigation tree below rootID, depth levels deep.
	FetchBoundedSubtree(ctx context.Context, loc models.Localization, rootID string, depth int, includeAncestors bool) ([]*models.SitemapItem, error)
}

// IsTaxonomyRoot reports whether a sitemap id addresses a taxonomy root rather
// than a node nested in a taxonomy. Nested ids are composite, e.g. "t1-k5".
func IsTaxonomyRoot(sitemapID string) bool {
	return sitemapID != "" && !strings.Contains(sitemapID, "-")
}
