package transport

import "github.com/exhibitly/backend/domain"

// ResourceRequest is the mutation payload shared by create and update. On
// update, nil slices mean "keep the stored value"; empty slices overwrite.
type ResourceRequest struct {
	ReferenceName *string              `json:"reference_name,omitempty"`
	InstitutionID string               `json:"institution_id,omitempty"`
	ExhibitionID  string               `json:"exhibition_id,omitempty"`
	LangOptions   *[]domain.LangOption `json:"lang_options,omitempty"`
	Images        *[]domain.ImageRef   `json:"images,omitempty"`
}

// PreviewRequest drives the synchronous audio preview endpoint.
type PreviewRequest struct {
	Markup string `json:"markup"`
	Voice  string `json:"voice"`
	Lang   string `json:"lang"`
}
