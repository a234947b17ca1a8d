package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/oklog/ulid/v2"

	"github.com/rcliao/tally-replica/internal/chunker"
	"github.com/rcliao/tally-replica/internal/model"
)

// DefaultLegacyKey held whole documents before chunking was introduced.
const DefaultLegacyKey = "latest_tally_json"

// LargeOptions configures a LargeStore.
type LargeOptions struct {
	// Prefix is prepended to every key the store writes.
	Prefix string
	// LegacyKey is read when the metadata records zero parts. Empty disables
	// the fallback.
	LegacyKey string
	// ChunkSize is the maximum number of bytes per chunk value.
	ChunkSize int
}

// LargeStore persists values larger than the backend's ceiling as a run of
// chunk keys plus one metadata key that is written last.
//
// Key layout:
//
//	<prefix><name>:meta
//	<prefix><name>:chunk:<generation>:<index>
type LargeStore struct {
	kv   KV
	opts LargeOptions

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewLargeStore wraps kv.
func NewLargeStore(kv KV, opts LargeOptions) *LargeStore {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultSize
	}
	return &LargeStore{
		kv:      kv,
		opts:    opts,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// KV returns the underlying backend.
func (s *LargeStore) KV() KV { return s.kv }

func (s *LargeStore) newGeneration() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *LargeStore) metaKey(name string) string {
	return s.opts.Prefix + name + ":meta"
}

func (s *LargeStore) chunkPrefix(name string) string {
	return s.opts.Prefix + name + ":chunk:"
}

func (s *LargeStore) chunkKey(name, generation string, i int) string {
	return s.chunkPrefix(name) + generation + ":" + fmt.Sprintf("%06d", i)
}

// PutLarge replaces the object stored under name with data. The previous
// object's chunks and metadata are removed first, the new chunks are written,
// and the metadata goes in last so it never describes partial data.
func (s *LargeStore) PutLarge(ctx context.Context, name, data string, counts map[string]int) (*model.ChunkMeta, error) {
	start := time.Now()

	if _, err := s.Delete(ctx, name); err != nil {
		return nil, fmt.Errorf("clear previous: %w", err)
	}

	gen := s.newGeneration()
	parts := chunker.Split(data, chunker.Options{Size: s.opts.ChunkSize})
	for i, p := range parts {
		if err := s.kv.Put(ctx, s.chunkKey(name, gen, i), p); err != nil {
			return nil, fmt.Errorf("write chunk %d/%d: %w", i, len(parts), err)
		}
	}

	sum := sha256.Sum256([]byte(data))
	meta := &model.ChunkMeta{
		Parts:      len(parts),
		StoredAt:   time.Now().UTC(),
		Counts:     counts,
		Generation: gen,
		Size:       len(data),
		SHA256:     hex.EncodeToString(sum[:]),
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal meta: %w", err)
	}

	if ckv, ok := s.kv.(ConditionalKV); ok {
		written, err := ckv.PutIfAbsent(ctx, s.metaKey(name), string(b))
		if err != nil {
			return nil, fmt.Errorf("write meta: %w", err)
		}
		if !written {
			if err := s.resolveConflict(ctx, name, gen, string(b)); err != nil {
				return nil, err
			}
		} else if intact, err := s.intact(ctx, name, gen, len(parts)); err != nil {
			return nil, fmt.Errorf("verify chunks: %w", err)
		} else if !intact {
			// A concurrent writer cleared our chunks after we wrote them. Its
			// metadata write repairs the object.
			return nil, fmt.Errorf("write meta for %s: chunks superseded: %w", name, ErrConflict)
		}
	} else if err := s.kv.Put(ctx, s.metaKey(name), string(b)); err != nil {
		return nil, fmt.Errorf("write meta: %w", err)
	}

	log.Debugw("large object stored", "name", name, "generation", gen, "parts", len(parts), "bytes", len(data), "took", time.Since(start))
	return meta, nil
}

// resolveConflict runs after losing the conditional metadata write. A winner
// whose chunks are all present keeps the object and this writer's chunks are
// dropped. A winner whose chunks were cleared by this writer's delete step is
// replaced, so the object never ends up pointing at a missing generation.
func (s *LargeStore) resolveConflict(ctx context.Context, name, gen, meta string) error {
	raw, ok, err := s.kv.Get(ctx, s.metaKey(name))
	if err != nil {
		return fmt.Errorf("read winning meta: %w", err)
	}

	var winner model.ChunkMeta
	healthy := false
	if ok && json.Unmarshal([]byte(raw), &winner) == nil && winner.Parts > 0 {
		healthy, err = s.intact(ctx, name, winner.Generation, winner.Parts)
		if err != nil {
			return fmt.Errorf("verify winning chunks: %w", err)
		}
	}

	if healthy {
		s.dropGeneration(ctx, name, gen)
		return fmt.Errorf("write meta for %s: %w", name, ErrConflict)
	}

	log.Warnw("replacing metadata of a broken concurrent write", "name", name, "generation", gen, "stale", winner.Generation)
	if err := s.kv.Put(ctx, s.metaKey(name), meta); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	if ok && winner.Generation != "" && winner.Generation != gen {
		s.dropGeneration(ctx, name, winner.Generation)
	}
	return nil
}

// intact reports whether every chunk 0..parts-1 of gen is present.
func (s *LargeStore) intact(ctx context.Context, name, gen string, parts int) (bool, error) {
	keys, err := s.kv.List(ctx, s.chunkPrefix(name)+gen+":")
	if err != nil {
		return false, err
	}
	seen := make(map[int]bool, len(keys))
	for _, k := range keys {
		if _, idx, ok := chunkIndex(k); ok {
			seen[idx] = true
		}
	}
	for i := 0; i < parts; i++ {
		if !seen[i] {
			return false, nil
		}
	}
	return true, nil
}

// dropGeneration removes the chunks of one generation, best effort.
func (s *LargeStore) dropGeneration(ctx context.Context, name, gen string) {
	keys, err := s.kv.List(ctx, s.chunkPrefix(name)+gen+":")
	if err != nil {
		log.Warnw("list chunks for cleanup failed", "name", name, "generation", gen, "err", err)
		return
	}
	for _, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			log.Warnw("delete chunk failed", "key", k, "err", err)
		}
	}
}

// GetLarge reassembles the object stored under name. ErrEmpty means no
// metadata is stored. Metadata recording zero parts marks a pre-chunking
// deployment; the legacy key is returned then, with a nil meta. ErrCorrupt
// means metadata exists but its chunks do not add up.
func (s *LargeStore) GetLarge(ctx context.Context, name string) (string, *model.ChunkMeta, error) {
	raw, ok, err := s.kv.Get(ctx, s.metaKey(name))
	if err != nil {
		return "", nil, fmt.Errorf("read meta: %w", err)
	}
	if !ok {
		return "", nil, ErrEmpty
	}

	var meta model.ChunkMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return "", nil, fmt.Errorf("%w: unreadable meta: %v", ErrCorrupt, err)
	}
	if meta.Parts <= 0 {
		return s.legacy(ctx)
	}

	var b strings.Builder
	if meta.Size > 0 {
		b.Grow(meta.Size)
	}
	for i := 0; i < meta.Parts; i++ {
		part, ok, err := s.kv.Get(ctx, s.chunkKey(name, meta.Generation, i))
		if err != nil {
			return "", nil, fmt.Errorf("read chunk %d: %w", i, err)
		}
		if !ok {
			return "", &meta, fmt.Errorf("%w: chunk %d of %d missing (generation %s)", ErrCorrupt, i, meta.Parts, meta.Generation)
		}
		b.WriteString(part)
	}

	data := b.String()
	if meta.Size > 0 && len(data) != meta.Size {
		return "", &meta, fmt.Errorf("%w: size %d, want %d", ErrCorrupt, len(data), meta.Size)
	}
	if meta.SHA256 != "" {
		sum := sha256.Sum256([]byte(data))
		if hex.EncodeToString(sum[:]) != meta.SHA256 {
			return "", &meta, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
		}
	}
	return data, &meta, nil
}

func (s *LargeStore) legacy(ctx context.Context) (string, *model.ChunkMeta, error) {
	if s.opts.LegacyKey == "" {
		return "", nil, ErrEmpty
	}
	v, ok, err := s.kv.Get(ctx, s.opts.LegacyKey)
	if err != nil {
		return "", nil, fmt.Errorf("read legacy: %w", err)
	}
	if !ok || v == "" {
		return "", nil, ErrEmpty
	}
	return v, nil, nil
}

// Delete removes every chunk under name and then its metadata. It returns
// the number of chunk keys removed.
func (s *LargeStore) Delete(ctx context.Context, name string) (int, error) {
	keys, err := s.kv.List(ctx, s.chunkPrefix(name))
	if err != nil {
		return 0, err
	}
	for i, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			return i, err
		}
	}
	if err := s.kv.Delete(ctx, s.metaKey(name)); err != nil {
		return len(keys), err
	}
	return len(keys), nil
}

// chunkIndex parses the index suffix of a chunk key.
func chunkIndex(key string) (gen string, idx int, ok bool) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, false
	}
	rest := key[:i]
	j := strings.LastIndexByte(rest, ':')
	if j < 0 {
		return "", 0, false
	}
	return rest[j+1:], n, true
}
