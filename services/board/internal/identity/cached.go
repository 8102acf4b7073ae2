package identity

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// ProfileCache is the batch cache used by CachedDirectory.
type ProfileCache interface {
	GetMany(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	SetMany(ctx context.Context, values map[string]any) error
}

// CachedDirectory serves profiles from cache and asks the wrapped
// Directory only for misses. Cache failures are logged and bypassed.
type CachedDirectory struct {
	Next  Directory
	Cache ProfileCache
	Log   *zap.Logger
}

var _ Directory = (*CachedDirectory)(nil)

func NewCachedDirectory(next Directory, cache ProfileCache, log *zap.Logger) *CachedDirectory {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedDirectory{Next: next, Cache: cache, Log: log}
}

func (d *CachedDirectory) GetByIDs(ctx context.Context, ids []string, userToken string) (map[string]Profile, error) {
	ids = dedupe(ids)
	out := make(map[string]Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	hits, err := d.Cache.GetMany(ctx, ids)
	if err != nil {
		d.Log.Warn("identity: profile cache read failed", zap.Error(err))
		hits = nil
	}
	var misses []string
	for _, id := range ids {
		raw, ok := hits[id]
		if !ok {
			misses = append(misses, id)
			continue
		}
		var p Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			misses = append(misses, id)
			continue
		}
		out[id] = p
	}
	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := d.Next.GetByIDs(ctx, misses, userToken)
	if err != nil {
		return nil, err
	}
	fill := make(map[string]any, len(fetched))
	for id, p := range fetched {
		out[id] = p
		fill[id] = p
	}
	if err := d.Cache.SetMany(ctx, fill); err != nil {
		d.Log.Warn("identity: profile cache write failed", zap.Error(err))
	}
	return out, nil
}
