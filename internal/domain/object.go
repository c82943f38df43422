package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ObjectKind string

const (
	KindSection ObjectKind = "section"
	KindScript  ObjectKind = "script"
	KindShot    ObjectKind = "shot"
	KindNote    ObjectKind = "note"
	KindText    ObjectKind = "text"
	KindImage   ObjectKind = "image"
	KindGroup   ObjectKind = "group"
)

// Valid reports whether k is one of the recognised card kinds.
func (k ObjectKind) Valid() bool {
	switch k {
	case KindSection, KindScript, KindShot, KindNote, KindText, KindImage, KindGroup:
		return true
	default:
		return false
	}
}

// CanParent reports whether objects of this kind may hold children.
// Only sections and groups are containers.
func (k ObjectKind) CanParent() bool {
	return k == KindSection || k == KindGroup
}

// HeightAuto is the sentinel height for kinds that size to their content
// (notes, text, script excerpts).
const HeightAuto = -1

// CanvasObject is a single card on a workspace canvas. Kind is fixed at
// creation; Payload carries the kind-specific fields.
type CanvasObject struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	Kind        ObjectKind `json:"kind"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
	Rotation    float64    `json:"rotation"`
	Opacity     float64    `json:"opacity"`
	Visible     bool       `json:"visible"`
	Locked      bool       `json:"locked"`
	ZIndex      int        `json:"z_index"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Payload     Payload    `json:"-"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks the object shape. It does not verify cross-object
// invariants (a dangling ParentID renders as unparented, not an error).
func (o *CanvasObject) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("kind %q: %w", o.Kind, ErrValidation)
	}
	if o.WorkspaceID == uuid.Nil {
		return fmt.Errorf("workspace id required: %w", ErrValidation)
	}
	if o.Width <= 0 {
		return fmt.Errorf("width must be positive: %w", ErrValidation)
	}
	if o.Height <= 0 && o.Height != HeightAuto {
		return fmt.Errorf("height must be positive or auto: %w", ErrValidation)
	}
	if o.Opacity < 0 || o.Opacity > 1 {
		return fmt.Errorf("opacity must be in [0,1]: %w", ErrValidation)
	}
	if o.Payload != nil && o.Payload.Kind() != o.Kind {
		return fmt.Errorf("payload kind %q does not match object kind %q: %w",
			o.Payload.Kind(), o.Kind, ErrValidation)
	}
	return nil
}

// Clone returns a deep copy. Payload structs contain no reference types,
// so a shallow payload copy is a deep one.
func (o *CanvasObject) Clone() *CanvasObject {
	c := *o
	if o.ParentID != nil {
		pid := *o.ParentID
		c.ParentID = &pid
	}
	if o.Payload != nil {
		c.Payload = clonePayload(o.Payload)
	}
	return &c
}

type objectJSON struct {
	ID          uuid.UUID       `json:"id"`
	WorkspaceID uuid.UUID       `json:"workspace_id"`
	Kind        ObjectKind      `json:"kind"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Width       float64         `json:"width"`
	Height      float64         `json:"height"`
	Rotation    float64         `json:"rotation"`
	Opacity     float64         `json:"opacity"`
	Visible     bool            `json:"visible"`
	Locked      bool            `json:"locked"`
	ZIndex      int             `json:"z_index"`
	ParentID    *uuid.UUID      `json:"parent_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	CreatedBy   uuid.UUID       `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MarshalJSON flattens the payload into a "data" field keyed by kind.
func (o *CanvasObject) MarshalJSON() ([]byte, error) {
	data, err := EncodePayload(o.Payload)
	if err != nil {
		return nil, fmt.Errorf("canvasObject.MarshalJSON: %w", err)
	}
	return json.Marshal(objectJSON{
		ID:          o.ID,
		WorkspaceID: o.WorkspaceID,
		Kind:        o.Kind,
		X:           o.X,
		Y:           o.Y,
		Width:       o.Width,
		Height:      o.Height,
		Rotation:    o.Rotation,
		Opacity:     o.Opacity,
		Visible:     o.Visible,
		Locked:      o.Locked,
		ZIndex:      o.ZIndex,
		ParentID:    o.ParentID,
		Data:        data,
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	})
}

// UnmarshalJSON decodes the "data" field into the typed payload for the
// declared kind.
func (o *CanvasObject) UnmarshalJSON(b []byte) error {
	var raw objectJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("canvasObject.UnmarshalJSON: %w", err)
	}
	payload, err := DecodePayload(raw.Kind, raw.Data)
	if err != nil {
		return fmt.Errorf("canvasObject.UnmarshalJSON: %w", err)
	}
	*o = CanvasObject{
		ID:          raw.ID,
		WorkspaceID: raw.WorkspaceID,
		Kind:        raw.Kind,
		X:           raw.X,
		Y:           raw.Y,
		Width:       raw.Width,
		Height:      raw.Height,
		Rotation:    raw.Rotation,
		Opacity:     raw.Opacity,
		Visible:     raw.Visible,
		Locked:      raw.Locked,
		ZIndex:      raw.ZIndex,
		ParentID:    raw.ParentID,
		Payload:     payload,
		CreatedBy:   raw.CreatedBy,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
	}
	return nil
}

// ObjectPatch is a partial update. Nil fields are left unchanged.
// ClearParent detaches the object regardless of ParentID.
type ObjectPatch struct {
	X           *float64
	Y           *float64
	Width       *float64
	Height      *float64
	Rotation    *float64
	Opacity     *float64
	Visible     *bool
	Locked      *bool
	ZIndex      *int
	ParentID    *uuid.UUID
	ClearParent bool
	Payload     Payload
}

// Apply copies the set fields onto o.
func (p ObjectPatch) Apply(o *CanvasObject) {
	if p.X != nil {
		o.X = *p.X
	}
	if p.Y != nil {
		o.Y = *p.Y
	}
	if p.Width != nil {
		o.Width = *p.Width
	}
	if p.Height != nil {
		o.Height = *p.Height
	}
	if p.Rotation != nil {
		o.Rotation = *p.Rotation
	}
	if p.Opacity != nil {
		o.Opacity = *p.Opacity
	}
	if p.Visible != nil {
		o.Visible = *p.Visible
	}
	if p.Locked != nil {
		o.Locked = *p.Locked
	}
	if p.ZIndex != nil {
		o.ZIndex = *p.ZIndex
	}
	if p.ClearParent {
		o.ParentID = nil
	} else if p.ParentID != nil {
		pid := *p.ParentID
		o.ParentID = &pid
	}
	if p.Payload != nil {
		o.Payload = clonePayload(p.Payload)
	}
}

// ObjectFilter narrows and reorders object reads. A zero OrderBy keeps
// paint order.
type ObjectFilter struct {
	Kind     *ObjectKind
	ParentID *uuid.UUID
	OrderBy  Order
}

type CanvasObjectRepository interface {
	Create(ctx context.Context, o *CanvasObject) error
	GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*CanvasObject, error)
	// ListByWorkspace returns objects ordered by ascending z-index,
	// creation time as tie-break.
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*CanvasObject, error)
	Filter(ctx context.Context, workspaceID uuid.UUID, f ObjectFilter) ([]*CanvasObject, error)
	// Update applies a partial update and returns the stored row with
	// the server-assigned updated_at.
	Update(ctx context.Context, workspaceID, id uuid.UUID, patch ObjectPatch) (*CanvasObject, error)
	// Delete is idempotent: deleting an unknown id succeeds.
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
	// SweepOrphans nulls parent references to objects that no longer
	// exist. Run at workspace load.
	SweepOrphans(ctx context.Context, workspaceID uuid.UUID) (int64, error)
}
