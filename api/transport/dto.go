package transport

import (
	"time"

	"github.com/exhibitly/backend/asset"
	"github.com/exhibitly/backend/domain"
)

// ImageDTO replaces a raw image reference with fetchable signed URLs.
type ImageDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// ResourceDTO is the hydrated read representation of a resource.
type ResourceDTO struct {
	ID            string              `json:"id"`
	Kind          string              `json:"kind"`
	InstitutionID string              `json:"institution_id,omitempty"`
	ExhibitionID  string              `json:"exhibition_id,omitempty"`
	ReferenceName string              `json:"reference_name"`
	LangOptions   []domain.LangOption `json:"lang_options,omitempty"`
	Images        []ImageDTO          `json:"images,omitempty"`
	Status        string              `json:"status"`
	Version       int64               `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// PageDTO wraps a page of resources with its continuation token.
type PageDTO struct {
	Items       []ResourceDTO `json:"items"`
	Count       int           `json:"count"`
	NextPageKey string        `json:"next_page_key,omitempty"`
}

// ToResourceDTO hydrates a resource for the read path, substituting signed
// URLs for raw image ids.
func ToResourceDTO(res *domain.Resource, signer *URLSigner) ResourceDTO {
	dto := ResourceDTO{
		ID:            res.ID,
		Kind:          string(res.Kind),
		InstitutionID: res.InstitutionID,
		ExhibitionID:  res.ExhibitionID,
		ReferenceName: res.ReferenceName,
		LangOptions:   res.LangOptions,
		Status:        string(res.Status),
		Version:       res.Version,
		CreatedAt:     res.CreatedAt,
		UpdatedAt:     res.UpdatedAt,
	}
	for _, img := range res.Images {
		dto.Images = append(dto.Images, ImageDTO{
			ID:           img.ID,
			Name:         img.Name,
			URL:          signer.SignedURL(asset.PrivatePath(res.CustomerID, asset.CategoryImages, img.ID)),
			ThumbnailURL: signer.SignedURL(asset.PrivatePath(res.CustomerID, asset.CategoryThumbnails, asset.ThumbnailID(img.ID))),
		})
	}
	return dto
}
