package store

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rcliao/tally-replica/internal/model"
)

// Stats describes one stored object and the keys behind it.
type Stats struct {
	DBPath      string           `json:"db_path,omitempty"`
	DBSizeBytes int64            `json:"db_size_bytes,omitempty"`
	TotalKeys   int              `json:"total_keys"`
	Object      string           `json:"object"`
	Meta        *model.ChunkMeta `json:"meta,omitempty"`
	ChunkKeys   int              `json:"chunk_keys"`
	Missing     []int            `json:"missing,omitempty"`
	Orphans     []string         `json:"orphans,omitempty"`
	Legacy      bool             `json:"legacy"`
}

// Stats reports the metadata of name alongside the chunk keys actually
// present. Missing lists chunk indexes the metadata expects but the backend
// lacks; Orphans lists chunk keys no metadata refers to.
func (s *LargeStore) Stats(ctx context.Context, name string) (*Stats, error) {
	st := &Stats{Object: name}

	if sq, ok := s.kv.(*SQLiteKV); ok {
		st.DBPath = sq.Path()
		if info, err := os.Stat(sq.Path()); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}

	all, err := s.kv.List(ctx, "")
	if err != nil {
		return st, err
	}
	st.TotalKeys = len(all)

	if raw, ok, err := s.kv.Get(ctx, s.metaKey(name)); err != nil {
		return st, err
	} else if ok {
		var m model.ChunkMeta
		if json.Unmarshal([]byte(raw), &m) == nil {
			st.Meta = &m
		}
	}

	keys, err := s.kv.List(ctx, s.chunkPrefix(name))
	if err != nil {
		return st, err
	}
	st.ChunkKeys = len(keys)

	seen := make(map[int]bool)
	for _, k := range keys {
		gen, idx, ok := chunkIndex(k)
		if !ok || st.Meta == nil || gen != st.Meta.Generation || idx >= st.Meta.Parts {
			st.Orphans = append(st.Orphans, k)
			continue
		}
		seen[idx] = true
	}
	if st.Meta != nil {
		for i := 0; i < st.Meta.Parts; i++ {
			if !seen[i] {
				st.Missing = append(st.Missing, i)
			}
		}
	}

	if s.opts.LegacyKey != "" {
		if _, ok, err := s.kv.Get(ctx, s.opts.LegacyKey); err == nil && ok {
			st.Legacy = true
		}
	}
	return st, nil
}
