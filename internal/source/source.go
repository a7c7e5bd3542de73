package source

import (
	"context"

	"mangawatch/pkg/models"
)

// Source is implemented by each external content provider (API / HTML /
// local mirror). A source fetches its own data format and maps it into the
// shared models; it never touches persistence.
type Source interface {
	ID() string
	FetchMetadata(ctx context.Context, title models.Title) (models.RemoteMetadata, error)
	FetchChapterList(ctx context.Context, title models.Title) ([]models.FetchedChapter, error)
}

// Registry resolves a title's sourceId to the provider that owns it.
type Registry struct {
	sources map[string]Source
}

func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.sources[s.ID()] = s
	}
	return r
}

func (r *Registry) Get(id string) (Source, bool) {
	s, ok := r.sources[id]
	return s, ok
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	return ids
}
