package models

// SitemapItemType distinguishes page-like leaves from taxonomy containers.
type SitemapItemType string

const (
	SitemapItemTypePage         SitemapItemType = "Page"
	SitemapItemTypeTaxonomyNode SitemapItemType = "TaxonomyNode"
)

// SitemapItem is a node of the navigation tree.
type SitemapItem struct {
	ID      string          `json:"Id"`
	Title   string          `json:"Title,omitempty"`
	URL     string          `json:"Url,omitempty"`
	Type    SitemapItemType `json:"Type"`
	Visible bool            `json:"Visible"`

	// HasChildNodes reports whether the node has children in the content
	// service, regardless of whether they were fetched.
	HasChildNodes bool `json:"HasChildNodes,omitempty"`

	// ChildrenLoaded is true when Items holds the complete set of children.
	ChildrenLoaded bool           `json:"ChildrenLoaded"`
	Items          []*SitemapItem `json:"Items,omitempty"`
}

func (i *SitemapItem) IsTaxonomyNode() bool {
	return i != nil && i.Type == SitemapItemTypeTaxonomyNode
}

func (i *SitemapItem) DeepCopy() *SitemapItem {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Items = SitemapItems(i.Items).DeepCopy()
	return &cp
}

// SitemapItems is an ordered list of sitemap nodes.
type SitemapItems []*SitemapItem

func (s SitemapItems) DeepCopy() SitemapItems {
	if s == nil {
		return nil
	}
	out := make(SitemapItems, len(s))
	for i, item := range s {
		out[i] = item.DeepCopy()
	}
	return out
}
