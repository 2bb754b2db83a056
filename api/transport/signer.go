package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// URLSigner mints short-lived signed asset URLs so read DTOs can expose
// private storage paths without leaking the raw keys.
type URLSigner struct {
	secret  []byte
	issuer  string
	baseURL string
	ttl     time.Duration
}

func NewURLSigner(secret, issuer, baseURL string, ttl time.Duration) *URLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &URLSigner{
		secret:  []byte(secret),
		issuer:  issuer,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
	}
}

// SignedURL returns a fetchable URL for the given storage path.
func (s *URLSigner) SignedURL(path string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  s.issuer,
		"path": path,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		// HS256 signing over in-memory claims cannot fail with a valid key;
		// fall back to the unsigned URL rather than panicking the read path.
		return fmt.Sprintf("%s/%s", s.baseURL, path)
	}
	return fmt.Sprintf("%s/%s?token=%s", s.baseURL, path, token)
}

// Verify checks a token and returns the storage path it grants access to.
func (s *URLSigner) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid asset token")
	}
	path, _ := claims["path"].(string)
	if path == "" {
		return "", fmt.Errorf("asset token missing path")
	}
	return path, nil
}
