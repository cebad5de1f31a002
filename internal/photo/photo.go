// Package photo validates uploaded images and stores them in blob storage.
package photo

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"geo-challenge/internal/model"
)

// Validation errors.
var (
	ErrEmpty           = errors.New("photo is empty")
	ErrTooLarge        = errors.New("photo exceeds maximum size")
	ErrUnsupportedType = errors.New("photo type is not supported")
)

var extensionTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Validator checks photo size and type before upload.
type Validator struct {
	maxBytes int64
	allowed  map[string]bool
}

// NewValidator creates a Validator. A non-positive maxBytes disables the
// size check.
func NewValidator(maxBytes int64, allowedTypes []string) *Validator {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &Validator{maxBytes: maxBytes, allowed: allowed}
}

// Validate checks p and returns its sniffed content type. The filename
// extension, when present, must agree with an allowed type; the bytes
// decide the final type.
func (v *Validator) Validate(p model.Photo) (string, error) {
	if len(p.Data) == 0 {
		return "", ErrEmpty
	}
	if v.maxBytes > 0 && int64(len(p.Data)) > v.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(p.Data), v.maxBytes)
	}

	if ext := strings.ToLower(filepath.Ext(p.Filename)); ext != "" {
		if t, ok := extensionTypes[ext]; !ok || !v.allowed[t] {
			return "", fmt.Errorf("%w: extension %q", ErrUnsupportedType, ext)
		}
	}

	sniffed := http.DetectContentType(p.Data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if !v.allowed[sniffed] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, sniffed)
	}
	return sniffed, nil
}

// ChallengeKey is the blob key of a challenge's reference photo.
func ChallengeKey(challengeID string) string {
	return "challenges/" + challengeID
}

// GuessKey is the blob key of a guess photo.
func GuessKey(challengeID, userID, id string) string {
	return fmt.Sprintf("guesses/%s/%s/%s", challengeID, userID, id)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ""
	}
}
