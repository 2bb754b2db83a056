package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validExhibit() *Resource {
	return &Resource{
		ID:           "exb-1",
		CustomerID:   "cust-1",
		Kind:         KindExhibit,
		ExhibitionID: "exh-1",
		LangOptions: []LangOption{
			{Lang: "en", Title: "Turbine Hall"},
			{Lang: "de", Title: "Turbinenhalle"},
		},
		Images: []ImageRef{{ID: "img-1", Name: "hero.jpg"}},
	}
}

func TestResource_Validate(t *testing.T) {
	require.NoError(t, validExhibit().Validate())
}

func TestResource_Validate_UnknownKind(t *testing.T) {
	res := validExhibit()
	res.Kind = "gallery"
	err := res.Validate()
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInvalid))
}

func TestResource_Validate_MissingParent(t *testing.T) {
	exhibition := validExhibit()
	exhibition.Kind = KindExhibition
	exhibition.InstitutionID = ""
	assert.True(t, IsDomainError(exhibition.Validate(), ErrCodeInvalid))

	exhibit := validExhibit()
	exhibit.ExhibitionID = ""
	assert.True(t, IsDomainError(exhibit.Validate(), ErrCodeInvalid))
}

func TestResource_Validate_DuplicateLang(t *testing.T) {
	res := validExhibit()
	res.LangOptions = append(res.LangOptions, LangOption{Lang: "en", Title: "again"})
	assert.True(t, IsDomainError(res.Validate(), ErrCodeInvalid))
}

func TestResource_Validate_DuplicateImage(t *testing.T) {
	res := validExhibit()
	res.Images = append(res.Images, ImageRef{ID: "img-1", Name: "other name"})
	assert.True(t, IsDomainError(res.Validate(), ErrCodeInvalid))
}

func TestResource_Validate_EmptyImageID(t *testing.T) {
	res := validExhibit()
	res.Images = append(res.Images, ImageRef{Name: "anonymous"})
	assert.True(t, IsDomainError(res.Validate(), ErrCodeInvalid))
}

func TestResource_NextVersion_WallClock(t *testing.T) {
	res := &Resource{Version: 1}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.UnixMilli(), res.NextVersion(now))
}

func TestResource_NextVersion_Monotonic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res := &Resource{Version: now.UnixMilli()}

	// Same-millisecond update still moves forward.
	assert.Equal(t, res.Version+1, res.NextVersion(now))

	// Clock skew behind the stored version never regresses.
	res.Version = now.UnixMilli() + 5000
	assert.Equal(t, res.Version+1, res.NextVersion(now))
}

func TestKind_Tag(t *testing.T) {
	assert.Equal(t, "ins", KindInstitution.Tag())
	assert.Equal(t, "exh", KindExhibition.Tag())
	assert.Equal(t, "exb", KindExhibit.Tag())
	assert.Equal(t, "", Kind("gallery").Tag())
}
