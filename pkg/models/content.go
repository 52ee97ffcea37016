package models

// Discriminators used in serialized model data.
const (
	PageModelDataType   = "PageModelData"
	RegionModelDataType = "RegionModelData"
	EntityModelDataType = "EntityModelData"
)

// IsEntityData reports whether data holds an embedded entity.
func IsEntityData(data *ModelData) bool {
	return data != nil && data.Type() == EntityModelDataType
}

// GenericContent is used for entities whose view has no registered content
// type. It keeps the raw fields and the models of any embedded entities.
type GenericContent struct {
	Fields   *ModelData                `json:"fields,omitempty"`
	Embedded map[string][]*EntityModel `json:"embedded,omitempty"`
}

func (g *GenericContent) PopulateFrom(fields *ModelData, resolve EntityResolver) error {
	g.Fields = fields
	for _, name := range fields.Names() {
		for _, obj := range fields.Objects(name) {
			if !IsEntityData(obj) {
				continue
			}
			e, err := resolve(obj)
			if err != nil {
				return err
			}
			if e == nil {
				continue
			}
			if g.Embedded == nil {
				g.Embedded = map[string][]*EntityModel{}
			}
			g.Embedded[name] = append(g.Embedded[name], e)
		}
	}
	return nil
}

func (g *GenericContent) DeepCopyContent(c *Copier) Content {
	cp := &GenericContent{Fields: g.Fields}
	if g.Embedded != nil {
		cp.Embedded = make(map[string][]*EntityModel, len(g.Embedded))
		for name, list := range g.Embedded {
			cp.Embedded[name] = c.Entities(list)
		}
	}
	return cp
}

// Article is a news or blog article.
type Article struct {
	Headline string       `json:"headline"`
	Date     string       `json:"date,omitempty"`
	Image    *EntityModel `json:"image,omitempty"`
	Body     []string     `json:"articleBody,omitempty"`
}

func (a *Article) PopulateFrom(fields *ModelData, resolve EntityResolver) error {
	a.Headline = fields.String("headline")
	a.Date = fields.String("dateCreated")

	img, err := resolveEmbedded(fields.Object("image"), resolve)
	if err != nil {
		return err
	}
	a.Image = img

	a.Body = fields.Strings("articleBody")
	for _, paragraph := range fields.Objects("articleBody") {
		if text := paragraph.String("content"); text != "" {
			a.Body = append(a.Body, text)
		}
	}
	return nil
}

func (a *Article) DeepCopyContent(c *Copier) Content {
	return &Article{
		Headline: a.Headline,
		Date:     a.Date,
		Image:    c.Entity(a.Image),
		Body:     append([]string(nil), a.Body...),
	}
}

// Image is a multimedia item rendered as an image.
type Image struct {
	URL           string `json:"url"`
	FileName      string `json:"fileName,omitempty"`
	MimeType      string `json:"mimeType,omitempty"`
	FileSize      int    `json:"fileSize,omitempty"`
	AlternateText string `json:"alternateText,omitempty"`
}

func (i *Image) PopulateFrom(fields *ModelData, _ EntityResolver) error {
	i.URL = fields.String("url")
	i.FileName = fields.String("fileName")
	i.MimeType = fields.String("mimeType")
	i.FileSize = fields.Int("fileSize")
	i.AlternateText = fields.String("name")
	return nil
}

func (i *Image) DeepCopyContent(_ *Copier) Content {
	cp := *i
	return &cp
}

// Teaser links to another piece of content.
type Teaser struct {
	Headline string       `json:"headline,omitempty"`
	Text     string       `json:"text,omitempty"`
	Link     string       `json:"link,omitempty"`
	Media    *EntityModel `json:"media,omitempty"`
}

func (t *Teaser) PopulateFrom(fields *ModelData, resolve EntityResolver) error {
	t.Headline = fields.String("headline")
	t.Text = fields.String("text")
	t.Link = fields.String("link")

	media, err := resolveEmbedded(fields.Object("media"), resolve)
	if err != nil {
		return err
	}
	t.Media = media
	return nil
}

func (t *Teaser) DeepCopyContent(c *Copier) Content {
	return &Teaser{
		Headline: t.Headline,
		Text:     t.Text,
		Link:     t.Link,
		Media:    c.Entity(t.Media),
	}
}

func resolveEmbedded(data *ModelData, resolve EntityResolver) (*EntityModel, error) {
	if !IsEntityData(data) {
		return nil, nil
	}
	return resolve(data)
}

var (
	_ Content = (*GenericContent)(nil)
	_ Content = (*Article)(nil)
	_ Content = (*Image)(nil)
	_ Content = (*Teaser)(nil)
)
