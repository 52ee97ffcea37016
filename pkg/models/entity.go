package models

import (
	"golang.org/x/exp/maps"
)

const (
	// IsQueryBasedXpmMetadataKey marks entities fetched on their own rather
	// than as part of a page.
	IsQueryBasedXpmMetadataKey = "IsQueryBased"
)

// MvcData identifies the view that renders a model. AreaName and ViewName also
// select the concrete Content type of an entity.
type MvcData struct {
	AreaName       string `json:"areaName,omitempty"`
	ControllerName string `json:"controllerName,omitempty"`
	ViewName       string `json:"viewName,omitempty"`
}

// Content is the view-specific payload of an entity.
type Content interface {
	// PopulateFrom fills the content from the entity's raw content fields.
	// Embedded entities are turned into models with resolve.
	PopulateFrom(fields *ModelData, resolve EntityResolver) error

	// DeepCopyContent returns an independent copy. Embedded entities must be
	// copied through c so shared references stay shared in the copy.
	DeepCopyContent(c *Copier) Content
}

// EntityResolver converts an embedded entity into a model. It returns a nil
// model without error when the entity is already being built further up the
// graph, in which case the reference is dropped.
type EntityResolver func(data *ModelData) (*EntityModel, error)

// EntityModel is a typed entity. Instances may be shared by reference within
// a single page graph.
type EntityModel struct {
	ID          string            `json:"id"`
	Title       string            `json:"title,omitempty"`
	MvcData     MvcData           `json:"mvcData"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	XpmMetadata map[string]any    `json:"xpmMetadata,omitempty"`
	Content     Content           `json:"content,omitempty"`
}

// DeepCopy returns a copy sharing no mutable state with e.
func (e *EntityModel) DeepCopy() *EntityModel {
	return NewCopier().Entity(e)
}

// Copier deep copies model graphs. Entities referenced more than once are
// copied once, so the copy has the same sharing as the original.
type Copier struct {
	entities map[*EntityModel]*EntityModel
}

func NewCopier() *Copier {
	return &Copier{entities: map[*EntityModel]*EntityModel{}}
}

func (c *Copier) Entity(e *EntityModel) *EntityModel {
	if e == nil {
		return nil
	}
	if cp, ok := c.entities[e]; ok {
		return cp
	}

	cp := &EntityModel{
		ID:      e.ID,
		Title:   e.Title,
		MvcData: e.MvcData,
	}
	c.entities[e] = cp

	cp.Metadata = maps.Clone(e.Metadata)
	cp.XpmMetadata = CloneXpmMetadata(e.XpmMetadata)
	if e.Content != nil {
		cp.Content = e.Content.DeepCopyContent(c)
	}
	return cp
}

func (c *Copier) Entities(list []*EntityModel) []*EntityModel {
	if list == nil {
		return nil
	}
	out := make([]*EntityModel, len(list))
	for i, e := range list {
		out[i] = c.Entity(e)
	}
	return out
}

// CloneXpmMetadata deep copies editor metadata, including nested maps and slices.
func CloneXpmMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneXpmMetadata(t)
	case map[string]string:
		return maps.Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
