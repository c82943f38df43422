package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Payload is the kind-specific content of a CanvasObject. Each kind has
// exactly one payload type; DecodePayload and EncodePayload are the two
// boundaries where the mapping is matched exhaustively.
type Payload interface {
	Kind() ObjectKind
}

// SectionPayload labels a rectangular region that other cards nest under.
type SectionPayload struct {
	Title     string `json:"title"`
	Color     string `json:"color,omitempty"`
	Collapsed bool   `json:"collapsed,omitempty"`
}

func (SectionPayload) Kind() ObjectKind { return KindSection }

// ScriptPayload embeds a script excerpt, optionally linked to a scene row
// managed outside the canvas.
type ScriptPayload struct {
	ScriptID    *uuid.UUID `json:"script_id,omitempty"`
	SceneNumber string     `json:"scene_number,omitempty"`
	Heading     string     `json:"heading,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
}

func (ScriptPayload) Kind() ObjectKind { return KindScript }

// ShotPayload references a shot-list entry.
type ShotPayload struct {
	ShotID      *uuid.UUID `json:"shot_id,omitempty"`
	ShotNumber  string     `json:"shot_number,omitempty"`
	Description string     `json:"description,omitempty"`
	Angle       string     `json:"angle,omitempty"`
	Movement    string     `json:"movement,omitempty"`
	Status      string     `json:"status,omitempty"`
}

func (ShotPayload) Kind() ObjectKind { return KindShot }

type NotePayload struct {
	Content string `json:"content"`
	Color   string `json:"color,omitempty"`
}

func (NotePayload) Kind() ObjectKind { return KindNote }

type TextPayload struct {
	Content    string  `json:"content"`
	FontSize   float64 `json:"font_size,omitempty"`
	FontFamily string  `json:"font_family,omitempty"`
	Color      string  `json:"color,omitempty"`
	Align      string  `json:"align,omitempty"`
}

func (TextPayload) Kind() ObjectKind { return KindText }

type ImagePayload struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

func (ImagePayload) Kind() ObjectKind { return KindImage }

// GroupPayload holds the label of an ad-hoc grouping of cards.
type GroupPayload struct {
	Label string `json:"label,omitempty"`
}

func (GroupPayload) Kind() ObjectKind { return KindGroup }

// DecodePayload parses raw JSON into the payload type for kind. A nil or
// empty raw yields the zero payload for the kind.
func DecodePayload(kind ObjectKind, raw json.RawMessage) (Payload, error) {
	decode := func(dst Payload) (Payload, error) {
		if len(raw) == 0 {
			return dst, nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, ErrValidation)
		}
		return dst, nil
	}

	switch kind {
	case KindSection:
		return decode(&SectionPayload{})
	case KindScript:
		return decode(&ScriptPayload{})
	case KindShot:
		return decode(&ShotPayload{})
	case KindNote:
		return decode(&NotePayload{})
	case KindText:
		return decode(&TextPayload{})
	case KindImage:
		return decode(&ImagePayload{})
	case KindGroup:
		return decode(&GroupPayload{})
	default:
		return nil, fmt.Errorf("unknown object kind %q: %w", kind, ErrValidation)
	}
}

// EncodePayload serialises a payload for storage or the wire. A nil
// payload encodes as null.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return b, nil
}

func clonePayload(p Payload) Payload {
	switch v := p.(type) {
	case *SectionPayload:
		c := *v
		return &c
	case *ScriptPayload:
		c := *v
		if v.ScriptID != nil {
			id := *v.ScriptID
			c.ScriptID = &id
		}
		return &c
	case *ShotPayload:
		c := *v
		if v.ShotID != nil {
			id := *v.ShotID
			c.ShotID = &id
		}
		return &c
	case *NotePayload:
		c := *v
		return &c
	case *TextPayload:
		c := *v
		return &c
	case *ImagePayload:
		c := *v
		return &c
	case *GroupPayload:
		c := *v
		return &c
	default:
		return p
	}
}
