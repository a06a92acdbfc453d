package diff

import (
	"encoding/json"
	"fmt"

	"github.com/banderole-io/banderole/internal/snapshot"
)

// PlanFormatVersion is the wire-format version of encoded plans. A decoder
// rejects versions it does not understand rather than misreading them.
const PlanFormatVersion = 1

type planDoc struct {
	FormatVersion int                `json:"format_version"`
	ID            string             `json:"id"`
	BeforeVersion string             `json:"before_version"`
	AfterVersion  string             `json:"after_version"`
	Segments      []segmentChangeDoc `json:"segments,omitempty"`
	Changes       []changeDoc        `json:"changes"`
}

type changeDoc struct {
	Key            string              `json:"key"`
	Kind           ChangeKind          `json:"kind"`
	BeforeVariants []string            `json:"before_variants,omitempty"`
	AfterVariants  []string            `json:"after_variants,omitempty"`
	Before         *snapshot.KeyDoc    `json:"before,omitempty"`
	After          *snapshot.KeyDoc    `json:"after,omitempty"`
}

type segmentChangeDoc struct {
	Segment string               `json:"segment"`
	Kind    ChangeKind           `json:"kind"`
	Before  *snapshot.SegmentDoc `json:"before,omitempty"`
	After   *snapshot.SegmentDoc `json:"after,omitempty"`
}

// EncodePlan serializes a plan to its stable, versioned wire format so a
// plan computed by one process can be applied or displayed by another.
func EncodePlan(plan *Plan) ([]byte, error) {
	doc := planDoc{
		FormatVersion: PlanFormatVersion,
		ID:            plan.ID,
		BeforeVersion: plan.BeforeVersion,
		AfterVersion:  plan.AfterVersion,
	}

	for _, sc := range plan.Segments {
		entry := segmentChangeDoc{Segment: sc.Segment, Kind: sc.Kind}
		if sc.Before != nil {
			d := snapshot.FromSegment(sc.Before)
			entry.Before = &d
		}
		if sc.After != nil {
			d := snapshot.FromSegment(sc.After)
			entry.After = &d
		}
		doc.Segments = append(doc.Segments, entry)
	}

	for _, c := range plan.Changes {
		entry := changeDoc{
			Key:            c.Key,
			Kind:           c.Kind,
			BeforeVariants: c.BeforeVariants,
			AfterVariants:  c.AfterVariants,
		}
		if c.Before != nil {
			d := snapshot.FromKey(c.Before)
			entry.Before = &d
		}
		if c.After != nil {
			d := snapshot.FromKey(c.After)
			entry.After = &d
		}
		doc.Changes = append(doc.Changes, entry)
	}

	return json.MarshalIndent(doc, "", "  ")
}

// DecodePlan deserializes a plan from its wire format.
func DecodePlan(data []byte) (*Plan, error) {
	var doc planDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if doc.FormatVersion != PlanFormatVersion {
		return nil, fmt.Errorf("unsupported plan format version %d", doc.FormatVersion)
	}

	plan := &Plan{
		ID:            doc.ID,
		BeforeVersion: doc.BeforeVersion,
		AfterVersion:  doc.AfterVersion,
	}

	for _, sc := range doc.Segments {
		entry := SegmentChange{Segment: sc.Segment, Kind: sc.Kind}
		if sc.Before != nil {
			s := sc.Before.ToSegment()
			entry.Before = &s
		}
		if sc.After != nil {
			s := sc.After.ToSegment()
			entry.After = &s
		}
		plan.Segments = append(plan.Segments, entry)
	}

	for _, c := range doc.Changes {
		entry := ChangeRecord{
			Key:            c.Key,
			Kind:           c.Kind,
			BeforeVariants: c.BeforeVariants,
			AfterVariants:  c.AfterVariants,
		}
		if c.Before != nil {
			key, err := c.Before.ToKey()
			if err != nil {
				return nil, fmt.Errorf("plan change %s: %w", c.Key, err)
			}
			entry.Before = &key
		}
		if c.After != nil {
			key, err := c.After.ToKey()
			if err != nil {
				return nil, fmt.Errorf("plan change %s: %w", c.Key, err)
			}
			entry.After = &key
		}
		plan.Changes = append(plan.Changes, entry)
	}

	return plan, nil
}
