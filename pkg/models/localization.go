package models

import "fmt"

// ContentNamespace is the CM URI scheme of a localization's content.
type ContentNamespace string

const (
	// NamespaceSites is used by Sites (CM) publications.
	NamespaceSites ContentNamespace = "tcm"
	// NamespaceDocs is used by Docs publications.
	NamespaceDocs ContentNamespace = "ish"
)

// ItemType is the numeric CM item type appended to non-component URIs.
type ItemType int

const (
	ItemTypeComponent         ItemType = 16
	ItemTypeComponentTemplate ItemType = 32
	ItemTypePage              ItemType = 64
	ItemTypeCategory          ItemType = 512
	ItemTypeKeyword           ItemType = 1024
)

// Localization scopes every content lookup and cache key to a site and language.
type Localization struct {
	ID          string           `json:"id"`
	Namespace   ContentNamespace `json:"namespace"`
	Path        string           `json:"path"`
	Culture     string           `json:"culture"`
	StagingMode bool             `json:"stagingMode"`
}

// CmURI returns the URI of an item within this localization's publication, e.g.
// "tcm:1065-640-64" for a page or "tcm:1065-1234" for a component.
func (l Localization) CmURI(id string, itemType ItemType) string {
	ns := l.namespace()
	if itemType == ItemTypeComponent || itemType == 0 {
		return fmt.Sprintf("%s:%s-%s", ns, l.ID, id)
	}
	return fmt.Sprintf("%s:%s-%s-%d", ns, l.ID, id, itemType)
}

func (l Localization) String() string {
	return fmt.Sprintf("%s:%s (%s)", l.namespace(), l.ID, l.Path)
}

func (l Localization) namespace() ContentNamespace {
	if l.Namespace == "" {
		return NamespaceSites
	}
	return l.Namespace
}
