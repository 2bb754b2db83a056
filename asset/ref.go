// Package asset derives storage references and minimal change sets from
// resource snapshots. Everything here is pure: no I/O, no clocks.
package asset

import (
	"fmt"
	"regexp"

	"github.com/exhibitly/backend/domain"
)

// Storage categories under which derived artifacts are keyed.
const (
	CategoryUploads    = "uploads"
	CategoryImages     = "images"
	CategoryThumbnails = "thumbnails"
	CategoryAudio      = "audio"
	CategoryQR         = "qr"
)

// Article markup references embedded images through data-image-id attributes.
var articleImageRe = regexp.MustCompile(`data-image-id="([^"]+)"`)

// PrivatePath returns the customer-scoped key for an asset, served behind auth.
func PrivatePath(customerID, category, assetID string) string {
	return fmt.Sprintf("customers/%s/%s/%s", customerID, category, assetID)
}

// PublicPath returns the CDN-servable key for an asset, keyed by resource id.
func PublicPath(resourceID, category, assetID string) string {
	return fmt.Sprintf("public/%s/%s/%s", resourceID, category, assetID)
}

// UploadPath returns the staging key where the client uploaded the original.
func UploadPath(customerID, imageID string) string {
	return PrivatePath(customerID, CategoryUploads, imageID)
}

// ThumbnailID derives the stable identifier of an image's thumbnail variant.
func ThumbnailID(imageID string) string {
	return imageID + "_thumb"
}

// ExtractArticleImageIDs returns the image ids embedded in article markup,
// in order of appearance. Duplicates are kept; callers use the result for set
// membership only.
func ExtractArticleImageIDs(markup string) []string {
	matches := articleImageRe.FindAllStringSubmatch(markup, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// QRFor builds the QR artifact descriptor for a resource. The encoded value is
// "{kindTag}/{id}", resolved from the explicit kind discriminant.
func QRFor(r *domain.Resource) domain.QRAsset {
	return domain.QRAsset{
		PrivatePath:  PrivatePath(r.CustomerID, CategoryQR, r.ID),
		EncodedValue: fmt.Sprintf("%s/%s", r.Kind.Tag(), r.ID),
	}
}

// AudioAssetsFor returns one descriptor per language option that defines
// audio. Storage keys are derived from "{resourceID}_{lang}".
func AudioAssetsFor(r *domain.Resource) []domain.AudioAsset {
	var out []domain.AudioAsset
	for _, opt := range r.LangOptions {
		if opt.Audio == nil {
			continue
		}
		key := fmt.Sprintf("%s_%s", r.ID, opt.Lang)
		out = append(out, domain.AudioAsset{
			Lang:        opt.Lang,
			Voice:       opt.Audio.Voice,
			Markup:      opt.Audio.Markup,
			PrivatePath: PrivatePath(r.CustomerID, CategoryAudio, key),
			PublicPath:  PublicPath(r.ID, CategoryAudio, key),
		})
	}
	return out
}

// ImageAssetsFor returns descriptors for the union of the resource's declared
// images and every image id referenced inside article markup. Markup is the
// source of truth for usage; the declared list only contributes display names,
// so markup-only ids still yield an asset.
func ImageAssetsFor(r *domain.Resource) []domain.ImageAsset {
	names := make(map[string]string, len(r.Images))
	order := make([]string, 0, len(r.Images))
	seen := make(map[string]struct{}, len(r.Images))

	for _, img := range r.Images {
		names[img.ID] = img.Name
		if _, ok := seen[img.ID]; !ok {
			seen[img.ID] = struct{}{}
			order = append(order, img.ID)
		}
	}
	for _, opt := range r.LangOptions {
		for _, id := range ExtractArticleImageIDs(opt.Article) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				order = append(order, id)
			}
		}
	}

	out := make([]domain.ImageAsset, 0, len(order))
	for _, id := range order {
		thumbID := ThumbnailID(id)
		out = append(out, domain.ImageAsset{
			ID:               id,
			Name:             names[id],
			UploadPath:       UploadPath(r.CustomerID, id),
			PrivatePath:      PrivatePath(r.CustomerID, CategoryImages, id),
			PublicPath:       PublicPath(r.ID, CategoryImages, id),
			ThumbPrivatePath: PrivatePath(r.CustomerID, CategoryThumbnails, thumbID),
			ThumbPublicPath:  PublicPath(r.ID, CategoryThumbnails, thumbID),
		})
	}
	return out
}
