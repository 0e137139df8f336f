package services

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/component-registry/internal/upload"
)

// SupplementSigner signs the metadata block of exported supplement documents
// and verifies the signature on upload. HMAC keyed by SUPPLEMENT_SIGNING_KEY;
// with an empty key both directions become no-ops (the signature field is
// optional in the document format).
type SupplementSigner struct {
	key []byte
}

func NewSupplementSigner(key string) *SupplementSigner {
	return &SupplementSigner{key: []byte(key)}
}

type supplementClaims struct {
	ApplicationID string `json:"applicationId"`
	ApplicationNo string `json:"applicationNo"`
	ExportTime    string `json:"exportTime"`
	jwt.RegisteredClaims
}

func (s *SupplementSigner) Sign(meta upload.SupplementMeta) (string, error) {
	if len(s.key) == 0 {
		return "", nil
	}
	claims := supplementClaims{
		ApplicationID: meta.ApplicationID,
		ApplicationNo: meta.ApplicationNo,
		ExportTime:    meta.ExportTime,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "component-registry",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// VerifySupplement implements upload.SignatureVerifier.
func (s *SupplementSigner) VerifySupplement(meta upload.SupplementMeta) error {
	if len(s.key) == 0 {
		return nil
	}
	parsed, err := jwt.ParseWithClaims(meta.Signature, &supplementClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return err
	}
	claims, ok := parsed.Claims.(*supplementClaims)
	if !ok || !parsed.Valid {
		return fmt.Errorf("invalid supplement signature")
	}
	if claims.ApplicationID != meta.ApplicationID ||
		claims.ApplicationNo != meta.ApplicationNo ||
		claims.ExportTime != meta.ExportTime {
		return fmt.Errorf("supplement signature does not cover the presented metadata")
	}
	return nil
}
