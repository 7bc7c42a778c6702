// Package auth guards the HTTP API with a single bcrypt-hashed API key.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/toolworks/cycletimed/internal/db"
)

const bcryptCost = 12

// settingKey is the settings row holding the bcrypt hash of the API key.
const settingKey = "api_key_hash"

// HashKey hashes a plain-text API key using bcrypt cost 12.
func HashKey(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth.HashKey: %w", err)
	}
	return string(b), nil
}

// CheckKey compares a plain-text key against a bcrypt hash.
func CheckKey(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// GenerateKey returns a random 32-byte hex API key.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth.GenerateKey: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SetAPIKey hashes the plain key and stores it in settings.
func SetAPIKey(database *db.DB, plain string) error {
	hash, err := HashKey(plain)
	if err != nil {
		return err
	}
	return database.SetSetting(settingKey, hash)
}

// Enabled reports whether an API key has been provisioned. With no key
// stored the API runs open, for local single-user use.
func Enabled(database *db.DB) bool {
	return database.GetSetting(settingKey, "") != ""
}

// RequireAPIKey is middleware that validates a Bearer token from the
// Authorization header (or an X-API-Key header) against the stored hash.
func RequireAPIKey(database *db.DB, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := database.GetSetting(settingKey, "")
		if hash == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := ""
		if a := r.Header.Get("Authorization"); strings.HasPrefix(a, "Bearer ") {
			key = strings.TrimPrefix(a, "Bearer ")
		}
		if key == "" {
			key = r.Header.Get("X-API-Key")
		}
		if key == "" || !CheckKey(key, hash) {
			http.Error(w, `{"success":false,"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
