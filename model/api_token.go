package model

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
)

// APIToken authenticates machine clients of the JSON API. Only a salted hash
// and a lookup prefix are persisted; the plaintext leaves the server once.
type APIToken struct {
	gorm.Model
	OwnerID     uint   `gorm:"index;not null"`
	UserID      *uint  `gorm:"index"`
	TokenPrefix string `gorm:"size:16;index;not null"`
	TokenHash   string `gorm:"size:64;uniqueIndex;not null"`
	Salt        string `gorm:"size:64;not null"`

	Name       string `gorm:"size:100"`
	Scope      string `gorm:"size:200"`
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	Disabled   bool `gorm:"not null;default:false"`
}

func (APIToken) TableName() string { return "api_tokens" }

// makeToken is the only place that touches randomness and hashing.
func makeToken() (plain, prefix, saltHex, tokenHash string, err error) {
	randBytes := make([]byte, 32)
	if _, e := rand.Read(randBytes); e != nil {
		return "", "", "", "", e
	}
	plain = base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(randBytes)
	if len(plain) < 8 {
		return "", "", "", "", errors.New("token generation failed")
	}
	prefix = plain[:8]

	salt := make([]byte, 16)
	if _, e := rand.Read(salt); e != nil {
		return "", "", "", "", e
	}
	saltHex = hex.EncodeToString(salt)

	h := sha256.Sum256(append(salt, []byte(plain)...))
	tokenHash = hex.EncodeToString(h[:])
	return
}

// CreateAPIToken creates a new API token record and returns its plaintext
// exactly once.
func (store *Store) CreateAPIToken(ownerID uint, userID *uint, name, scope string, expiresAt *time.Time) (plain string, rec *APIToken, err error) {
	plain, prefix, saltHex, hash, err := makeToken()
	if err != nil {
		return "", nil, err
	}
	rec = &APIToken{
		OwnerID:     ownerID,
		UserID:      userID,
		TokenPrefix: prefix,
		TokenHash:   hash,
		Salt:        saltHex,
		Name:        name,
		Scope:       scope,
		ExpiresAt:   expiresAt,
	}
	if err = store.db.Create(rec).Error; err != nil {
		return "", nil, err
	}
	return plain, rec, nil
}

// ValidateAPIToken verifies an incoming raw token: prefix lookup, salted
// hash comparison in constant time, disabled and expiry checks. The
// last_used_at update is best effort.
func (store *Store) ValidateAPIToken(raw string) (*APIToken, error) {
	if len(raw) < 12 {
		return nil, ErrTokenInvalid
	}
	prefix := raw[:8]

	var rec APIToken
	if err := store.db.Where("token_prefix = ?", prefix).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	salt, err := hex.DecodeString(rec.Salt)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	h := sha256.Sum256(append(salt, []byte(raw)...))
	got := hex.EncodeToString(h[:])
	if subtle.ConstantTimeCompare([]byte(got), []byte(rec.TokenHash)) != 1 {
		return nil, ErrTokenInvalid
	}

	if rec.Disabled {
		return nil, ErrTokenDisabled
	}
	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	_ = store.db.Model(&APIToken{}).Where("id = ?", rec.ID).Update("last_used_at", time.Now()).Error
	return &rec, nil
}

// RevokeAPIToken disables a token. Only allowed for tokens of the owner.
func (store *Store) RevokeAPIToken(ownerID, tokenID uint) error {
	return store.db.Model(&APIToken{}).
		Where("id = ? AND owner_id = ?", tokenID, ownerID).
		Update("disabled", true).Error
}
