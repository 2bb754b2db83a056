package domain

// ImageAsset describes the derived artifacts of one referenced image: the
// mobile-sized variant in both storage tiers plus the cover-crop thumbnail.
type ImageAsset struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	UploadPath       string `json:"upload_path"`
	PrivatePath      string `json:"private_path"`
	PublicPath       string `json:"public_path"`
	ThumbPrivatePath string `json:"thumb_private_path"`
	ThumbPublicPath  string `json:"thumb_public_path"`
}

// AudioAsset describes a synthesized narration for one language.
type AudioAsset struct {
	Lang        string `json:"lang"`
	Voice       string `json:"voice"`
	Markup      string `json:"markup"`
	PrivatePath string `json:"private_path"`
	PublicPath  string `json:"public_path"`
}

// QRAsset describes the QR code artifact pointing at a resource's public page.
type QRAsset struct {
	PrivatePath  string `json:"private_path"`
	EncodedValue string `json:"encoded_value"`
}

// DeleteSet lists storage keys that are no longer referenced, split by tier.
type DeleteSet struct {
	Private []string `json:"private,omitempty"`
	Public  []string `json:"public,omitempty"`
}

// Empty reports whether the set names no keys at all.
func (d *DeleteSet) Empty() bool {
	return d == nil || (len(d.Private) == 0 && len(d.Public) == 0)
}

// AssetPayload is the asset slice of a mutation envelope: what the workflow
// must materialize and what it must tear down.
type AssetPayload struct {
	QRCode *QRAsset     `json:"qr_code,omitempty"`
	Images []ImageAsset `json:"images,omitempty"`
	Audios []AudioAsset `json:"audios,omitempty"`
	Delete *DeleteSet   `json:"delete,omitempty"`
}

// Empty reports whether the payload requires no workflow asset step at all.
func (p AssetPayload) Empty() bool {
	return p.QRCode == nil && len(p.Images) == 0 && len(p.Audios) == 0 && p.Delete.Empty()
}
