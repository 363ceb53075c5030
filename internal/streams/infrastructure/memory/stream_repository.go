package memory

import (
	"context"
	"sort"
	"sync"

	streams "paystream-cloud/internal/streams/domain"
)

// StreamRepository is an in-memory stream store for tests and local runs.
// It applies the same version guard as the Postgres repository.
type StreamRepository struct {
	mu      sync.Mutex
	byID    map[string]*streams.Stream
	byIdem  map[string]string
	ordered []string
}

// NewStreamRepository constructs an empty in-memory repository.
func NewStreamRepository() *StreamRepository {
	return &StreamRepository{
		byID:   make(map[string]*streams.Stream),
		byIdem: make(map[string]string),
	}
}

func idemKey(tenantID, key string) string { return tenantID + "\x00" + key }

// Create inserts a stream.
func (r *StreamRepository) Create(_ context.Context, stream *streams.Stream) error {
	if stream == nil {
		return streams.ErrNilStream
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[stream.ID] = stream.Clone()
	if stream.IdempotencyKey != "" {
		r.byIdem[idemKey(stream.TenantID, stream.IdempotencyKey)] = stream.ID
	}
	r.ordered = append(r.ordered, stream.ID)
	return nil
}

// Delete removes a stream.
func (r *StreamRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stream, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	if stream.IdempotencyKey != "" {
		delete(r.byIdem, idemKey(stream.TenantID, stream.IdempotencyKey))
	}
	for i, existing := range r.ordered {
		if existing == id {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	return nil
}

// Get fetches a stream by id.
func (r *StreamRepository) Get(_ context.Context, id string) (*streams.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stream, ok := r.byID[id]
	if !ok {
		return nil, streams.ErrStreamNotFound
	}
	return stream.Clone(), nil
}

// FindByIdempotencyKey looks up a stream by (tenant, idempotency key).
func (r *StreamRepository) FindByIdempotencyKey(_ context.Context, tenantID, key string) (*streams.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byIdem[idemKey(tenantID, key)]
	if !ok {
		return nil, streams.ErrStreamNotFound
	}
	return r.byID[id].Clone(), nil
}

// Update writes the stream when versions match, then bumps the version.
func (r *StreamRepository) Update(_ context.Context, stream *streams.Stream) error {
	if stream == nil {
		return streams.ErrNilStream
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[stream.ID]
	if !ok {
		return streams.ErrStreamNotFound
	}
	if existing.Version != stream.Version {
		return streams.ErrVersionConflict
	}
	stream.Version++
	r.byID[stream.ID] = stream.Clone()
	return nil
}

// ListActive returns every active stream across tenants.
func (r *StreamRepository) ListActive(_ context.Context) ([]streams.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []streams.Stream
	for _, id := range r.ordered {
		stream := r.byID[id]
		if stream.Status == streams.StatusActive {
			result = append(result, *stream.Clone())
		}
	}
	return result, nil
}

// ListByTenant returns the tenant's streams, newest first.
func (r *StreamRepository) ListByTenant(_ context.Context, tenantID string) ([]streams.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []streams.Stream
	for _, id := range r.ordered {
		stream := r.byID[id]
		if stream.TenantID == tenantID {
			result = append(result, *stream.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
