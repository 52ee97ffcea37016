package models

import (
	"fmt"

	"golang.org/x/exp/maps"
)

const (
	IncludedFromPageIDXpmMetadataKey       = "IncludedFromPageID"
	IncludedFromPageTitleXpmMetadataKey    = "IncludedFromPageTitle"
	IncludedFromPageFileNameXpmMetadataKey = "IncludedFromPageFileName"
)

// PageModel is a typed page graph.
type PageModel struct {
	ID          string            `json:"id"`
	Title       string            `json:"title,omitempty"`
	URL         string            `json:"url,omitempty"`
	MvcData     MvcData           `json:"mvcData"`
	Meta        map[string]string `json:"meta,omitempty"`
	XpmMetadata map[string]any    `json:"xpmMetadata,omitempty"`
	Regions     RegionModelSet    `json:"regions,omitempty"`

	// NoCache marks a page whose model must be rebuilt on every request.
	NoCache bool `json:"noCache,omitempty"`
}

// RegionModel is a named area of a page holding entities and nested regions.
// A region created from an include page records that page's id.
type RegionModel struct {
	Name          string         `json:"name"`
	MvcData       MvcData        `json:"mvcData"`
	IncludePageID string         `json:"includePageId,omitempty"`
	XpmMetadata   map[string]any `json:"xpmMetadata,omitempty"`
	Entities      []*EntityModel `json:"entities,omitempty"`
	Regions       RegionModelSet `json:"regions,omitempty"`
}

// RegionModelSet is an ordered list of regions with unique names.
type RegionModelSet []*RegionModel

// Add appends r, rejecting a name that is already present.
func (s *RegionModelSet) Add(r *RegionModel) error {
	if _, exists := s.Get(r.Name); exists {
		return fmt.Errorf("duplicate region name '%s'", r.Name)
	}
	*s = append(*s, r)
	return nil
}

func (s RegionModelSet) Get(name string) (*RegionModel, bool) {
	for _, r := range s {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

func (s RegionModelSet) Names() []string {
	names := make([]string, len(s))
	for i, r := range s {
		names[i] = r.Name
	}
	return names
}

// DeepCopy returns a copy sharing no mutable state with p.
func (p *PageModel) DeepCopy() *PageModel {
	if p == nil {
		return nil
	}
	c := NewCopier()
	return &PageModel{
		ID:          p.ID,
		Title:       p.Title,
		URL:         p.URL,
		MvcData:     p.MvcData,
		Meta:        maps.Clone(p.Meta),
		XpmMetadata: CloneXpmMetadata(p.XpmMetadata),
		Regions:     p.Regions.deepCopy(c),
		NoCache:     p.NoCache,
	}
}

func (s RegionModelSet) deepCopy(c *Copier) RegionModelSet {
	if s == nil {
		return nil
	}
	out := make(RegionModelSet, len(s))
	for i, r := range s {
		out[i] = &RegionModel{
			Name:          r.Name,
			MvcData:       r.MvcData,
			IncludePageID: r.IncludePageID,
			XpmMetadata:   CloneXpmMetadata(r.XpmMetadata),
			Entities:      c.Entities(r.Entities),
			Regions:       r.Regions.deepCopy(c),
		}
	}
	return out
}

// IncludePageIDs returns the ids of the include pages composed into the page,
// in region order and without duplicates.
func (p *PageModel) IncludePageIDs() []string {
	var ids []string
	seen := map[string]struct{}{}
	var walk func(RegionModelSet)
	walk = func(regions RegionModelSet) {
		for _, r := range regions {
			if r.IncludePageID != "" {
				if _, ok := seen[r.IncludePageID]; !ok {
					seen[r.IncludePageID] = struct{}{}
					ids = append(ids, r.IncludePageID)
				}
			}
			walk(r.Regions)
		}
	}
	walk(p.Regions)
	return ids
}

// FilterEntities removes, in place, every entity for which suppress returns
// true, in all regions of the page. It returns the number of entities removed.
func (p *PageModel) FilterEntities(suppress func(*EntityModel) bool) int {
	return p.Regions.filterEntities(suppress)
}

func (s RegionModelSet) filterEntities(suppress func(*EntityModel) bool) int {
	removed := 0
	for _, r := range s {
		kept := r.Entities[:0]
		for _, e := range r.Entities {
			if e != nil && suppress(e) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		for i := len(kept); i < len(r.Entities); i++ {
			r.Entities[i] = nil
		}
		r.Entities = kept
		removed += r.Regions.filterEntities(suppress)
	}
	return removed
}
