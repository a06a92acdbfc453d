// Package snapshot handles ingestion of full snapshot documents and the
// atomic active-snapshot pointer. Documents arrive whole from the upstream
// persistence/sync collaborator; there is no partial or delta ingestion.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/banderole-io/banderole/internal/domain"
	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// Document is the wire form of a full snapshot: every key, variant, rule,
// segment, and prerequisite as of one logical version.
type Document struct {
	Version  string       `json:"version,omitempty" yaml:"version,omitempty"`
	Keys     []KeyDoc     `json:"keys" yaml:"keys"`
	Segments []SegmentDoc `json:"segments,omitempty" yaml:"segments,omitempty"`
}

// KeyDoc is the wire form of a configuration key.
type KeyDoc struct {
	Name           string            `json:"name" yaml:"name"`
	Description    string            `json:"description,omitempty" yaml:"description,omitempty"`
	Kind           string            `json:"kind" yaml:"kind"`
	Variants       []VariantDoc      `json:"variants" yaml:"variants"`
	DefaultVariant string            `json:"default_variant" yaml:"default_variant"`
	Rules          []RuleDoc         `json:"rules,omitempty" yaml:"rules,omitempty"`
	Prerequisites  []PrerequisiteDoc `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	Archived       bool              `json:"archived,omitempty" yaml:"archived,omitempty"`
}

// VariantDoc is the wire form of a variant. Value is interpreted according
// to the owning key's declared kind.
type VariantDoc struct {
	Name  string      `json:"name" yaml:"name"`
	Value interface{} `json:"value" yaml:"value"`
}

// RuleDoc is the wire form of a targeting rule.
type RuleDoc struct {
	ID         string         `json:"id" yaml:"id"`
	Predicates []PredicateDoc `json:"predicates,omitempty" yaml:"predicates,omitempty"`
	Variant    string         `json:"variant,omitempty" yaml:"variant,omitempty"`
	Seed       string         `json:"seed,omitempty" yaml:"seed,omitempty"`
	Splits     []SplitDoc     `json:"splits,omitempty" yaml:"splits,omitempty"`
}

// PredicateDoc is the wire form of a predicate.
type PredicateDoc struct {
	Attribute string      `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Operator  string      `json:"operator" yaml:"operator"`
	Value     interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

// SplitDoc is the wire form of one percentage share.
type SplitDoc struct {
	Variant string `json:"variant" yaml:"variant"`
	Share   int    `json:"share" yaml:"share"`
}

// PrerequisiteDoc is the wire form of a prerequisite reference.
type PrerequisiteDoc struct {
	Key     string `json:"key" yaml:"key"`
	Variant string `json:"variant" yaml:"variant"`
}

// SegmentDoc is the wire form of a reusable segment.
type SegmentDoc struct {
	Name       string         `json:"name" yaml:"name"`
	Predicates []PredicateDoc `json:"predicates,omitempty" yaml:"predicates,omitempty"`
}

// Parse decodes a snapshot document from JSON or YAML. JSON documents start
// with an object brace; everything else goes through the YAML decoder.
func Parse(data []byte) (*Document, error) {
	var doc Document

	if looksLikeJSON(data) {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot document as JSON: %w", err)
		}
		return &doc, nil
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot document as YAML: %w", err)
	}
	return &doc, nil
}

func looksLikeJSON(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// Build converts the document into an immutable domain snapshot. When the
// document carries no version, a content-hash version is derived so that
// identical documents always map to the same snapshot version.
func (d *Document) Build() (*domain.Snapshot, error) {
	keys := make([]domain.Key, 0, len(d.Keys))
	for i := range d.Keys {
		key, err := d.Keys[i].ToKey()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	segments := make([]domain.Segment, 0, len(d.Segments))
	for i := range d.Segments {
		segments = append(segments, d.Segments[i].ToSegment())
	}

	version := d.Version
	if version == "" {
		var err error
		version, err = contentVersion(keys, segments)
		if err != nil {
			return nil, err
		}
	}

	return domain.NewSnapshot(version, keys, segments), nil
}

// contentVersion derives a stable version from the snapshot contents: the
// keys and segments are serialized in sorted order and hashed.
func contentVersion(keys []domain.Key, segments []domain.Segment) (string, error) {
	sortedKeys := append([]domain.Key(nil), keys...)
	sort.Slice(sortedKeys, func(i, j int) bool { return sortedKeys[i].Name < sortedKeys[j].Name })

	sortedSegments := append([]domain.Segment(nil), segments...)
	sort.Slice(sortedSegments, func(i, j int) bool { return sortedSegments[i].Name < sortedSegments[j].Name })

	canonical := Document{Segments: make([]SegmentDoc, 0, len(sortedSegments))}
	for i := range sortedKeys {
		canonical.Keys = append(canonical.Keys, FromKey(&sortedKeys[i]))
	}
	for i := range sortedSegments {
		canonical.Segments = append(canonical.Segments, FromSegment(&sortedSegments[i]))
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to derive content version: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// ToKey converts the wire form into a domain key.
func (k *KeyDoc) ToKey() (domain.Key, error) {
	kind := domain.ValueKind(k.Kind)

	variants := make([]domain.Variant, 0, len(k.Variants))
	for _, v := range k.Variants {
		value, err := toValue(kind, v.Value)
		if err != nil {
			return domain.Key{}, fmt.Errorf("key %s variant %s: %w", k.Name, v.Name, err)
		}
		variants = append(variants, domain.Variant{Name: v.Name, Value: value})
	}

	rules := make([]domain.Rule, 0, len(k.Rules))
	for _, r := range k.Rules {
		rules = append(rules, r.toRule())
	}

	prereqs := make([]domain.Prerequisite, 0, len(k.Prerequisites))
	for _, p := range k.Prerequisites {
		prereqs = append(prereqs, domain.Prerequisite{Key: p.Key, Variant: p.Variant})
	}

	return domain.Key{
		Name:           k.Name,
		Description:    k.Description,
		Kind:           kind,
		Variants:       variants,
		DefaultVariant: k.DefaultVariant,
		Rules:          rules,
		Prerequisites:  prereqs,
		Archived:       k.Archived,
	}, nil
}

func (r *RuleDoc) toRule() domain.Rule {
	predicates := make([]domain.Predicate, 0, len(r.Predicates))
	for _, p := range r.Predicates {
		predicates = append(predicates, domain.Predicate{
			Attribute: p.Attribute,
			Operator:  domain.Operator(p.Operator),
			Value:     p.Value,
		})
	}

	splits := make([]domain.Split, 0, len(r.Splits))
	for _, s := range r.Splits {
		splits = append(splits, domain.Split{Variant: s.Variant, Share: s.Share})
	}

	return domain.Rule{
		ID:         r.ID,
		Predicates: predicates,
		Distribution: domain.Distribution{
			Variant: r.Variant,
			Seed:    r.Seed,
			Splits:  splits,
		},
	}
}

// ToSegment converts the wire form into a domain segment.
func (s *SegmentDoc) ToSegment() domain.Segment {
	predicates := make([]domain.Predicate, 0, len(s.Predicates))
	for _, p := range s.Predicates {
		predicates = append(predicates, domain.Predicate{
			Attribute: p.Attribute,
			Operator:  domain.Operator(p.Operator),
			Value:     p.Value,
		})
	}
	return domain.Segment{Name: s.Name, Predicates: predicates}
}

// toValue interprets a decoded document value according to the declared kind.
func toValue(kind domain.ValueKind, raw interface{}) (domain.Value, error) {
	switch kind {
	case domain.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected boolean, got %T", raw)
		}
		return domain.BoolValue(b), nil

	case domain.KindString:
		s, ok := raw.(string)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return domain.StringValue(s), nil

	case domain.KindNumber:
		switch n := raw.(type) {
		case float64:
			return domain.NumberValue(n), nil
		case int:
			return domain.NumberValue(float64(n)), nil
		case int64:
			return domain.NumberValue(float64(n)), nil
		default:
			return domain.Value{}, fmt.Errorf("expected number, got %T", raw)
		}

	case domain.KindStructured:
		data, err := json.Marshal(raw)
		if err != nil {
			return domain.Value{}, fmt.Errorf("structured value: %w", err)
		}
		return domain.StructuredValue(data), nil

	default:
		return domain.Value{}, fmt.Errorf("unknown value kind %q", kind)
	}
}

// FromKey converts a domain key back into its wire form.
func FromKey(k *domain.Key) KeyDoc {
	variants := make([]VariantDoc, 0, len(k.Variants))
	for _, v := range k.Variants {
		variants = append(variants, VariantDoc{Name: v.Name, Value: fromValue(v.Value)})
	}

	rules := make([]RuleDoc, 0, len(k.Rules))
	for _, r := range k.Rules {
		rules = append(rules, fromRule(&r))
	}

	prereqs := make([]PrerequisiteDoc, 0, len(k.Prerequisites))
	for _, p := range k.Prerequisites {
		prereqs = append(prereqs, PrerequisiteDoc{Key: p.Key, Variant: p.Variant})
	}

	return KeyDoc{
		Name:           k.Name,
		Description:    k.Description,
		Kind:           string(k.Kind),
		Variants:       variants,
		DefaultVariant: k.DefaultVariant,
		Rules:          rules,
		Prerequisites:  prereqs,
		Archived:       k.Archived,
	}
}

func fromRule(r *domain.Rule) RuleDoc {
	predicates := make([]PredicateDoc, 0, len(r.Predicates))
	for _, p := range r.Predicates {
		predicates = append(predicates, PredicateDoc{
			Attribute: p.Attribute,
			Operator:  string(p.Operator),
			Value:     p.Value,
		})
	}

	splits := make([]SplitDoc, 0, len(r.Distribution.Splits))
	for _, s := range r.Distribution.Splits {
		splits = append(splits, SplitDoc{Variant: s.Variant, Share: s.Share})
	}

	return RuleDoc{
		ID:         r.ID,
		Predicates: predicates,
		Variant:    r.Distribution.Variant,
		Seed:       r.Distribution.Seed,
		Splits:     splits,
	}
}

// FromSegment converts a domain segment back into its wire form.
func FromSegment(s *domain.Segment) SegmentDoc {
	predicates := make([]PredicateDoc, 0, len(s.Predicates))
	for _, p := range s.Predicates {
		predicates = append(predicates, PredicateDoc{
			Attribute: p.Attribute,
			Operator:  string(p.Operator),
			Value:     p.Value,
		})
	}
	return SegmentDoc{Name: s.Name, Predicates: predicates}
}

// FromSnapshot converts an immutable snapshot back into its wire document.
func FromSnapshot(snap *domain.Snapshot) *Document {
	keys := snap.Keys()
	keyDocs := make([]KeyDoc, 0, len(keys))
	for i := range keys {
		keyDocs = append(keyDocs, FromKey(&keys[i]))
	}

	segments := snap.Segments()
	segmentDocs := make([]SegmentDoc, 0, len(segments))
	for i := range segments {
		segmentDocs = append(segmentDocs, FromSegment(&segments[i]))
	}

	return &Document{
		Version:  snap.Version(),
		Keys:     keyDocs,
		Segments: segmentDocs,
	}
}

// Encode renders the document as indented JSON.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// fromValue renders a tagged value into its plain document form.
func fromValue(v domain.Value) interface{} {
	switch v.Kind {
	case domain.KindBoolean:
		return v.Bool
	case domain.KindString:
		return v.Str
	case domain.KindNumber:
		return v.Number
	case domain.KindStructured:
		var decoded interface{}
		if err := json.Unmarshal(v.Doc, &decoded); err != nil {
			return string(v.Doc)
		}
		return decoded
	}
	return nil
}
