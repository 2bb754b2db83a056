package asset

import (
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/exhibitly/backend/domain"
)

// Diff computes the minimal asset operations needed to bring derived artifacts
// in sync after a mutation. A nil old snapshot means creation (everything is
// added); a nil new snapshot means deletion (everything is torn down).
// Descriptors are matched by content fingerprint, so unchanged assets appear
// in neither the add slices nor the delete set and trigger no workflow work.
// A changed asset that keeps its storage keys (edited narration markup, a
// renamed image) is an overwrite-in-place: it lands in the add slices only.
// The delete set never names a key the new snapshot still derives, since the
// workflow tears keys down after materializing the add-set.
func Diff(oldRes, newRes *domain.Resource) domain.AssetPayload {
	var payload domain.AssetPayload

	oldImages := indexImages(oldRes)
	newImages := indexImages(newRes)
	oldAudios := indexAudios(oldRes)
	newAudios := indexAudios(newRes)

	if newRes != nil {
		for _, img := range ImageAssetsFor(newRes) {
			if _, kept := oldImages[Fingerprint(img)]; !kept {
				payload.Images = append(payload.Images, img)
			}
		}
		for _, au := range AudioAssetsFor(newRes) {
			if _, kept := oldAudios[Fingerprint(au)]; !kept {
				payload.Audios = append(payload.Audios, au)
			}
		}
		if oldRes == nil {
			qr := QRFor(newRes)
			payload.QRCode = &qr
		}
	}

	del := &domain.DeleteSet{}
	if oldRes != nil {
		retained := retainedPaths(newRes)
		appendGone := func(tier *[]string, paths ...string) {
			for _, p := range paths {
				if _, keep := retained[p]; !keep {
					*tier = append(*tier, p)
				}
			}
		}
		for fp, img := range oldImages {
			if _, kept := newImages[fp]; kept {
				continue
			}
			appendGone(&del.Private, img.PrivatePath, img.ThumbPrivatePath)
			appendGone(&del.Public, img.PublicPath, img.ThumbPublicPath)
		}
		for fp, au := range oldAudios {
			if _, kept := newAudios[fp]; kept {
				continue
			}
			appendGone(&del.Private, au.PrivatePath)
			appendGone(&del.Public, au.PublicPath)
		}
		if newRes == nil {
			del.Private = append(del.Private, QRFor(oldRes).PrivatePath)
		}
	}
	if !del.Empty() {
		payload.Delete = del
	}
	return payload
}

// Fingerprint returns a stable content hash of an asset descriptor. The JSON
// encoder emits struct fields in declaration order, so identical descriptors
// hash equal regardless of how the snapshots were produced.
func Fingerprint(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// Descriptors are plain structs of strings; Marshal cannot fail on them.
		panic(fmt.Sprintf("asset: fingerprint marshal: %v", err))
	}
	sum := blake3.Sum256(raw)
	return fmt.Sprintf("%x", sum[:])
}

// retainedPaths returns every storage key the snapshot still derives, across
// all asset categories and both tiers.
func retainedPaths(r *domain.Resource) map[string]struct{} {
	if r == nil {
		return nil
	}
	keep := make(map[string]struct{})
	for _, img := range ImageAssetsFor(r) {
		keep[img.PrivatePath] = struct{}{}
		keep[img.PublicPath] = struct{}{}
		keep[img.ThumbPrivatePath] = struct{}{}
		keep[img.ThumbPublicPath] = struct{}{}
	}
	for _, au := range AudioAssetsFor(r) {
		keep[au.PrivatePath] = struct{}{}
		keep[au.PublicPath] = struct{}{}
	}
	keep[QRFor(r).PrivatePath] = struct{}{}
	return keep
}

func indexImages(r *domain.Resource) map[string]domain.ImageAsset {
	if r == nil {
		return nil
	}
	assets := ImageAssetsFor(r)
	out := make(map[string]domain.ImageAsset, len(assets))
	for _, a := range assets {
		out[Fingerprint(a)] = a
	}
	return out
}

func indexAudios(r *domain.Resource) map[string]domain.AudioAsset {
	if r == nil {
		return nil
	}
	assets := AudioAssetsFor(r)
	out := make(map[string]domain.AudioAsset, len(assets))
	for _, a := range assets {
		out[Fingerprint(a)] = a
	}
	return out
}
