// Package typeresolver maps the (area, view) pair of an entity to the concrete
// content type its fields are deserialized into.
package typeresolver

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

// CoreNamespace is the area of the built-in content types.
const CoreNamespace = "Core"

// Factory returns a new, empty content value.
type Factory func() models.Content

type typeKey struct {
	namespace     string
	discriminator string
}

func (k typeKey) String() string {
	return k.namespace + ":" + k.discriminator
}

// Resolver holds the registered content types. Registration normally happens at
// process start, but the Resolver is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	factories map[typeKey]Factory
	fallback  Factory
}

type ResolverOption func(r *Resolver)

// WithFallback sets the factory used for unregistered types. Defaults to
// models.GenericContent.
func WithFallback(f Factory) ResolverOption {
	return func(r *Resolver) {
		r.fallback = f
	}
}

// WithCoreTypes registers the built-in Article, Image and Teaser content types
// under CoreNamespace.
func WithCoreTypes() ResolverOption {
	return func(r *Resolver) {
		r.MustRegister(CoreNamespace, "Article", func() models.Content { return &models.Article{} })
		r.MustRegister(CoreNamespace, "Image", func() models.Content { return &models.Image{} })
		r.MustRegister(CoreNamespace, "Teaser", func() models.Content { return &models.Teaser{} })
	}
}

func New(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		factories: map[typeKey]Factory{},
		fallback:  func() models.Content { return &models.GenericContent{} },
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register maps a namespace and discriminator to a content factory. A pair can
// only be registered once.
func (r *Resolver) Register(namespace, discriminator string, f Factory) error {
	if f == nil {
		return fmt.Errorf("nil factory for type '%s:%s'", namespace, discriminator)
	}
	if discriminator == "" {
		return fmt.Errorf("empty discriminator in namespace '%s'", namespace)
	}

	k := typeKey{namespace: namespace, discriminator: discriminator}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[k]; ok {
		return fmt.Errorf("type '%s' already registered", k)
	}
	r.factories[k] = f
	return nil
}

func (r *Resolver) MustRegister(namespace, discriminator string, f Factory) {
	if err := r.Register(namespace, discriminator, f); err != nil {
		panic(err)
	}
}

// Resolve returns a new content value for the pair. The boolean is false when
// nothing is registered and the fallback type was used.
func (r *Resolver) Resolve(namespace, discriminator string) (models.Content, bool) {
	r.mu.RLock()
	f, ok := r.factories[typeKey{namespace: namespace, discriminator: discriminator}]
	r.mu.RUnlock()

	if !ok {
		return r.fallback(), false
	}
	return f(), true
}

// Registered lists the registered types as "namespace:discriminator", sorted.
func (r *Resolver) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}
