// Package ingest runs pushed Tally exports through decode, parse, normalize
// and aggregate, and persists the resulting document.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rcliao/tally-replica/internal/aggregate"
	"github.com/rcliao/tally-replica/internal/codec"
	"github.com/rcliao/tally-replica/internal/model"
	"github.com/rcliao/tally-replica/internal/normalize"
	"github.com/rcliao/tally-replica/internal/store"
	"github.com/rcliao/tally-replica/internal/xmltree"
)

// ErrInvalidInput marks a request that cannot be processed at all.
var ErrInvalidInput = errors.New("invalid input")

// DefaultObjectName is the large-object name of the latest document.
const DefaultObjectName = "latest"

// DefaultSource is recorded when a push does not name its source.
const DefaultSource = "tally"

// Options configures a Service.
type Options struct {
	ObjectName string
	Mode       aggregate.Mode
}

// Service owns the push and fetch paths.
type Service struct {
	objects *store.LargeStore
	name    string
	mode    aggregate.Mode
	schema  *jsonschema.Schema
	now     func() time.Time
}

// New returns a Service persisting through ls.
func New(ls *store.LargeStore, opts Options) (*Service, error) {
	if opts.ObjectName == "" {
		opts.ObjectName = DefaultObjectName
	}
	if opts.Mode == "" {
		opts.Mode = aggregate.ModeHeader
	}
	schema, err := compileEnvelopeSchema()
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return &Service{
		objects: ls,
		name:    opts.ObjectName,
		mode:    opts.Mode,
		schema:  schema,
		now:     time.Now,
	}, nil
}

// Result is the push response body.
type Result struct {
	Success    bool           `json:"success"`
	Counts     map[string]int `json:"counts"`
	PushID     string         `json:"pushId,omitempty"`
	Parts      int            `json:"parts"`
	Generation string         `json:"generation,omitempty"`

	// Unclassified counts raw-XML vouchers per type that fit no category.
	Unclassified map[string]int `json:"unclassified,omitempty"`
}

// Envelope is a decoded JSON push: optional source and time plus one
// transport-encoded field per category, keyed by category name.
type Envelope struct {
	Source string
	Time   string
	Fields map[string]string
}

// ParseEnvelope validates a JSON push body and extracts its recognized
// fields. Unrecognized fields are ignored.
func (s *Service) ParseEnvelope(body []byte) (*Envelope, error) {
	var inst any
	if err := json.Unmarshal(body, &inst); err != nil {
		return nil, fmt.Errorf("%w: body is not JSON: %v", ErrInvalidInput, err)
	}
	if err := s.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, schemaMessage(err))
	}

	obj := inst.(map[string]any)
	env := &Envelope{Fields: make(map[string]string, len(model.Categories))}
	env.Source, _ = obj["source"].(string)
	env.Time, _ = obj["time"].(string)
	for _, c := range model.Categories {
		if v, ok := obj[c.Field()].(string); ok {
			env.Fields[c.Name] = v
		}
	}
	return env, nil
}

// Push ingests a JSON envelope. A category whose field is missing or cannot
// be decoded contributes an empty bucket; it never fails the push.
func (s *Service) Push(ctx context.Context, body []byte) (*Result, error) {
	env, err := s.ParseEnvelope(body)
	if err != nil {
		return nil, err
	}

	pushID := uuid.NewString()
	batches := make(map[string]normalize.Batch, len(model.Categories))
	for _, c := range model.Categories {
		xml := codec.Decode(c.Name, env.Fields[c.Name])
		if xml == "" {
			continue
		}
		root, err := xmltree.Parse(xml)
		if err != nil {
			log.Warnw("category xml malformed, keeping parsed part", "push", pushID, "category", c.Name, "err", err)
		}
		batches[c.Name] = normalize.Category(c, root)
	}

	return s.persist(ctx, pushID, batches, env.Source, env.Time)
}

// PushXML ingests a raw Tally envelope. Vouchers are routed to categories by
// their type name; every master block goes to masters. Vouchers whose type
// maps to no category are counted per type in Result.Unclassified and
// logged.
func (s *Service) PushXML(ctx context.Context, xml, source string) (*Result, error) {
	if !codec.HasMarker(xml) {
		return nil, fmt.Errorf("%w: Invalid XML format", ErrInvalidInput)
	}

	pushID := uuid.NewString()
	root, err := xmltree.Parse(xml)
	if err != nil {
		log.Warnw("envelope malformed, keeping parsed part", "push", pushID, "err", err)
	}

	batches := make(map[string]normalize.Batch)
	unclassified := make(map[string]int)
	for _, b := range xmltree.Blocks(root, "VOUCHER") {
		v, ok := normalize.Voucher(b)
		if !ok {
			continue
		}
		cat, ok := normalize.Classify(v.VoucherType)
		if !ok {
			unclassified[unclassifiedKey(v.VoucherType)]++
			continue
		}
		batch := batches[cat]
		batch.Vouchers = append(batch.Vouchers, v)
		batches[cat] = batch
	}
	if normalize.HasMasters(root) {
		batches["masters"] = normalize.Batch{Masters: normalize.Masters(root)}
	}
	if len(unclassified) > 0 {
		log.Infow("vouchers outside every category", "push", pushID, "types", unclassified)
	}

	res, err := s.persist(ctx, pushID, batches, source, "")
	if err != nil {
		return nil, err
	}
	if len(unclassified) > 0 {
		res.Unclassified = unclassified
	}
	return res, nil
}

func unclassifiedKey(voucherType string) string {
	if t := strings.TrimSpace(voucherType); t != "" {
		return t
	}
	return "(none)"
}

func (s *Service) persist(ctx context.Context, pushID string, batches map[string]normalize.Batch, source, at string) (*Result, error) {
	start := s.now()
	if source == "" {
		source = DefaultSource
	}
	if at == "" {
		at = start.UTC().Format(time.RFC3339)
	}

	doc := aggregate.Build(batches, aggregate.Options{Mode: s.mode, Source: source, Time: at})
	res, err := s.Store(ctx, doc)
	if err != nil {
		log.Errorw("push failed", "push", pushID, "err", err)
		return nil, err
	}
	res.PushID = pushID

	log.Infow("push stored", "push", pushID, "source", source, "counts", res.Counts, "parts", res.Parts, "took", time.Since(start))
	return res, nil
}

// Store serializes and persists doc as the latest document.
func (s *Service) Store(ctx context.Context, doc *model.Document) (*Result, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	meta, err := s.objects.PutLarge(ctx, s.name, string(b), doc.Counts)
	if err != nil {
		return nil, err
	}
	return &Result{
		Success:    true,
		Counts:     doc.Counts,
		Parts:      meta.Parts,
		Generation: meta.Generation,
	}, nil
}

// Fetch returns the stored document exactly as serialized. store.ErrEmpty
// means nothing was ever pushed; store.ErrCorrupt means the stored chunks do
// not reassemble.
func (s *Service) Fetch(ctx context.Context) (string, error) {
	data, meta, err := s.objects.GetLarge(ctx, s.name)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			log.Warnw("stored document corrupt", "object", s.name, "err", err)
		}
		return "", err
	}
	if meta != nil {
		log.Debugw("document fetched", "object", s.name, "parts", meta.Parts, "generation", meta.Generation)
	}
	return data, nil
}

// Latest fetches and decodes the stored document.
func (s *Service) Latest(ctx context.Context) (*model.Document, error) {
	data, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	var doc model.Document
	if err := json.Unmarshal([]byte(data), &doc); err == nil {
		return &doc, nil
	}

	// Documents written before bucketing carry a flat rows array.
	var legacy struct {
		Status string      `json:"status"`
		Time   string      `json:"time"`
		Rows   []model.Row `json:"rows"`
	}
	if err := json.Unmarshal([]byte(data), &legacy); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", store.ErrCorrupt, err)
	}
	return &model.Document{
		Status:   legacy.Status,
		Time:     legacy.Time,
		Source:   DefaultSource,
		Counts:   map[string]int{},
		Rows:     map[string][]model.Row{},
		FlatRows: legacy.Rows,
	}, nil
}
