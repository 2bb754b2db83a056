package domain

import (
	"fmt"
	"time"
)

// Kind discriminates the closed set of resource variants. Every stored record
// carries its kind explicitly; nothing is inferred from field shape.
type Kind string

const (
	KindInstitution Kind = "institution"
	KindExhibition  Kind = "exhibition"
	KindExhibit     Kind = "exhibit"
)

// Tag returns the short identifier embedded in QR payloads and public links.
func (k Kind) Tag() string {
	switch k {
	case KindInstitution:
		return "ins"
	case KindExhibition:
		return "exh"
	case KindExhibit:
		return "exb"
	default:
		return ""
	}
}

// Valid reports whether the kind belongs to the closed variant set.
func (k Kind) Valid() bool {
	switch k {
	case KindInstitution, KindExhibition, KindExhibit:
		return true
	}
	return false
}

// Status tracks derived-artifact materialization for a resource.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusActive     Status = "ACTIVE"
	StatusError      Status = "ERROR"
)

// AudioSpec describes the text-to-speech input for one language.
type AudioSpec struct {
	Markup string `json:"markup"`
	Voice  string `json:"voice"`
}

// LangOption holds the per-language content of a resource.
type LangOption struct {
	Lang     string     `json:"lang"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle,omitempty"`
	Article  string     `json:"article,omitempty"`
	Audio    *AudioSpec `json:"audio,omitempty"`
}

// ImageRef points at an uploaded image in the customer's staging area.
type ImageRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resource is a versioned, customer-owned aggregate: an institution, an
// exhibition belonging to an institution, or an exhibit belonging to an
// exhibition.
type Resource struct {
	ID            string       `json:"id"`
	CustomerID    string       `json:"customer_id"`
	Kind          Kind         `json:"kind"`
	InstitutionID string       `json:"institution_id,omitempty"`
	ExhibitionID  string       `json:"exhibition_id,omitempty"`
	ReferenceName string       `json:"reference_name"`
	LangOptions   []LangOption `json:"lang_options,omitempty"`
	Images        []ImageRef   `json:"images,omitempty"`
	Status        Status       `json:"status"`
	Version       int64        `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Validate rejects structurally invalid resources before any store mutation.
func (r *Resource) Validate() error {
	if r == nil {
		return ErrInvalidPayload
	}
	if !r.Kind.Valid() {
		return NewError(ErrCodeInvalid, fmt.Sprintf("unknown resource kind %q", r.Kind))
	}
	if r.CustomerID == "" {
		return NewError(ErrCodeInvalid, "missing customer id")
	}
	switch r.Kind {
	case KindExhibition:
		if r.InstitutionID == "" {
			return NewError(ErrCodeInvalid, "exhibition requires an institution id")
		}
	case KindExhibit:
		if r.ExhibitionID == "" {
			return NewError(ErrCodeInvalid, "exhibit requires an exhibition id")
		}
	}

	langs := make(map[string]struct{}, len(r.LangOptions))
	for _, opt := range r.LangOptions {
		if opt.Lang == "" {
			return NewError(ErrCodeInvalid, "lang option with empty lang code")
		}
		if _, dup := langs[opt.Lang]; dup {
			return NewError(ErrCodeInvalid, fmt.Sprintf("duplicate lang option %q", opt.Lang))
		}
		langs[opt.Lang] = struct{}{}
	}

	imageIDs := make(map[string]struct{}, len(r.Images))
	for _, img := range r.Images {
		if img.ID == "" {
			return NewError(ErrCodeInvalid, "image reference with empty id")
		}
		if _, dup := imageIDs[img.ID]; dup {
			return NewError(ErrCodeInvalid, fmt.Sprintf("duplicate image reference %q", img.ID))
		}
		imageIDs[img.ID] = struct{}{}
	}
	return nil
}

// NextVersion returns the version to write on a successful conditional update.
// Wall-clock derived but strictly monotonic even when two updates land within
// the same millisecond.
func (r *Resource) NextVersion(now time.Time) int64 {
	v := now.UnixMilli()
	if v <= r.Version {
		v = r.Version + 1
	}
	return v
}

// Touch refreshes the modification timestamps.
func (r *Resource) Touch(now time.Time) {
	if r == nil {
		return
	}
	r.UpdatedAt = now
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}
