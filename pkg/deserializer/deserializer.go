// Package deserializer builds typed page and entity graphs from raw model data.
package deserializer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/typeresolver"
)

type DeserializerOption func(d *Deserializer)

func WithLogger(l logger.Logger) DeserializerOption {
	return func(d *Deserializer) {
		d.logger = l
	}
}

// Deserializer converts ModelData into PageModel and EntityModel graphs. Content
// types are looked up in the Resolver it was created with.
type Deserializer struct {
	types  *typeresolver.Resolver
	logger logger.Logger
}

func New(types *typeresolver.Resolver, opts ...DeserializerOption) *Deserializer {
	d := &Deserializer{
		types:  types,
		logger: logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// graph holds the state of a single deserialization. Entities are memoized by
// id so that repeated references share one model, and ids still being built
// are skipped to break reference cycles.
type graph struct {
	d            *Deserializer
	localization models.Localization
	entities     map[string]*models.EntityModel
	building     map[string]struct{}
}

func (d *Deserializer) newGraph(loc models.Localization) *graph {
	return &graph{
		d:            d,
		localization: loc,
		entities:     map[string]*models.EntityModel{},
		building:     map[string]struct{}{},
	}
}

// Page builds a page model. Editor metadata is only kept when the localization
// is in staging mode.
func (d *Deserializer) Page(data *models.ModelData, loc models.Localization) (*models.PageModel, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: no page data", models.ErrInvalidModelData)
	}
	if t := data.Type(); t != "" && t != models.PageModelDataType {
		return nil, fmt.Errorf("%w: expected %s, got %s", models.ErrInvalidModelData, models.PageModelDataType, t)
	}

	id := data.String("Id")
	if id == "" {
		return nil, fmt.Errorf("%w: page without id", models.ErrInvalidModelData)
	}

	g := d.newGraph(loc)
	page := &models.PageModel{
		ID:      id,
		Title:   data.String("Title"),
		URL:     data.String("UrlPath"),
		MvcData: mvcData(data),
		Meta:    data.StringMap("Meta"),
		NoCache: data.Bool("NoCache"),
	}
	if loc.StagingMode {
		page.XpmMetadata = data.Map("XpmMetadata")
	}

	regions, err := g.regions(data.Objects("Regions"))
	if err != nil {
		return nil, fmt.Errorf("page '%s': %w", id, err)
	}
	page.Regions = regions

	return page, nil
}

// Entity builds a standalone entity model.
func (d *Deserializer) Entity(data *models.ModelData, loc models.Localization) (*models.EntityModel, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: no entity data", models.ErrInvalidModelData)
	}
	if t := data.Type(); t != "" && t != models.EntityModelDataType {
		return nil, fmt.Errorf("%w: expected %s, got %s", models.ErrInvalidModelData, models.EntityModelDataType, t)
	}

	return d.newGraph(loc).entity(data)
}

func (g *graph) regions(list []*models.ModelData) (models.RegionModelSet, error) {
	if len(list) == 0 {
		return nil, nil
	}

	set := make(models.RegionModelSet, 0, len(list))
	for _, data := range list {
		r, err := g.region(data)
		if err != nil {
			return nil, err
		}
		if err := set.Add(r); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (g *graph) region(data *models.ModelData) (*models.RegionModel, error) {
	name := data.String("Name")
	if name == "" {
		return nil, fmt.Errorf("%w: region without name", models.ErrInvalidModelData)
	}

	r := &models.RegionModel{
		Name:          name,
		MvcData:       mvcData(data),
		IncludePageID: data.String("IncludePageId"),
	}

	if g.localization.StagingMode {
		r.XpmMetadata = data.Map("XpmMetadata")
		if r.IncludePageID != "" {
			if r.XpmMetadata == nil {
				r.XpmMetadata = map[string]any{}
			}
			r.XpmMetadata[models.IncludedFromPageIDXpmMetadataKey] = g.localization.CmURI(r.IncludePageID, models.ItemTypePage)
			r.XpmMetadata[models.IncludedFromPageTitleXpmMetadataKey] = data.String("IncludePageTitle")
			r.XpmMetadata[models.IncludedFromPageFileNameXpmMetadataKey] = data.String("IncludePageFileName")
		}
	}

	for _, entityData := range data.Objects("Entities") {
		e, err := g.entity(entityData)
		if err != nil {
			return nil, fmt.Errorf("region '%s': %w", name, err)
		}
		if e != nil {
			r.Entities = append(r.Entities, e)
		}
	}

	nested, err := g.regions(data.Objects("Regions"))
	if err != nil {
		return nil, fmt.Errorf("region '%s': %w", name, err)
	}
	r.Regions = nested

	return r, nil
}

func (g *graph) entity(data *models.ModelData) (*models.EntityModel, error) {
	id := data.String("Id")
	if id != "" {
		if e, ok := g.entities[id]; ok {
			return e, nil
		}
		if _, ok := g.building[id]; ok {
			g.d.logger.Debug("skipping cyclic entity reference", zap.String("entity_id", id))
			return nil, nil
		}
		g.building[id] = struct{}{}
		defer delete(g.building, id)
	}

	mvc := mvcData(data)
	content, registered := g.d.types.Resolve(mvc.AreaName, mvc.ViewName)
	if !registered {
		g.d.logger.Debug("no content type registered, using generic content",
			zap.String("entity_id", id),
			zap.String("area", mvc.AreaName),
			zap.String("view", mvc.ViewName))
	}

	if err := content.PopulateFrom(data.Object("Content"), g.entity); err != nil {
		return nil, fmt.Errorf("entity '%s': %w", id, err)
	}

	e := &models.EntityModel{
		ID:       id,
		Title:    data.String("Title"),
		MvcData:  mvc,
		Metadata: data.StringMap("Metadata"),
		Content:  content,
	}
	if g.localization.StagingMode {
		e.XpmMetadata = data.Map("XpmMetadata")
	}

	if id != "" {
		g.entities[id] = e
	}
	return e, nil
}

func mvcData(data *models.ModelData) models.MvcData {
	mvc := data.Object("MvcData")
	return models.MvcData{
		AreaName:       mvc.String("AreaName"),
		ControllerName: mvc.String("ControllerName"),
		ViewName:       mvc.String("ViewName"),
	}
}
