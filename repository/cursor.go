package repository

import (
	"encoding/base64"
	"encoding/json"

	"github.com/exhibitly/backend/domain"
)

// Cursor is an opaque pagination continuation token handed to clients. It is
// the base64 encoding of the store's native last-evaluated key and must only
// ever be round-tripped, never constructed or inspected by callers.
type Cursor string

// LastKey is the native pagination key of the postgres store: the creation
// instant (microseconds, matching timestamptz precision) and id of the last
// returned row.
type LastKey struct {
	CreatedAt int64  `json:"c"`
	ID        string `json:"i"`
}

// EncodeLastKey serializes a native key into an opaque cursor.
func EncodeLastKey(createdAtMicro int64, id string) Cursor {
	raw, _ := json.Marshal(LastKey{CreatedAt: createdAtMicro, ID: id})
	return Cursor(base64.RawURLEncoding.EncodeToString(raw))
}

// DecodeCursor recovers the native key from a client-supplied cursor. Any
// token the store did not mint decodes to an INVALID domain error.
func DecodeCursor(c Cursor) (LastKey, error) {
	var k LastKey
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return k, domain.WrapError(domain.ErrCodeInvalid, "invalid pagination cursor", err)
	}
	if err := json.Unmarshal(raw, &k); err != nil {
		return k, domain.WrapError(domain.ErrCodeInvalid, "invalid pagination cursor", err)
	}
	if k.ID == "" {
		return k, domain.ErrInvalidCursor
	}
	return k, nil
}
