package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	serviceTokenExpiry = 5 * time.Minute
	serviceIssuer      = "roomcapture"
)

// ServiceAuth signs the short-lived tokens the server presents to the
// registration backend
type ServiceAuth struct {
	secret []byte
}

// NewServiceAuth uses secret when given, otherwise the one persisted in db,
// otherwise a fresh random secret that is persisted for next time.
func NewServiceAuth(db *DB, secret string) *ServiceAuth {
	if secret != "" {
		return &ServiceAuth{secret: []byte(secret)}
	}
	return &ServiceAuth{secret: loadOrCreateSecret(db)}
}

// loadOrCreateSecret loads the signing secret from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB) []byte {
	if db != nil {
		if h := db.GetSetting("service_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate service secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting("service_secret", hex.EncodeToString(secret)); err != nil {
			log.Printf("auth: could not persist service secret: %v", err)
		}
	}
	return secret
}

// SignToken returns an HS256 token for one backend request about subject
func (a *ServiceAuth) SignToken(subject, kind string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  serviceIssuer,
		"sub":  subject,
		"kind": kind,
		"iat":  now.Unix(),
		"exp":  now.Add(serviceTokenExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken checks a token signed with the same secret and returns
// (subject, kind, error)
func (a *ServiceAuth) ValidateToken(tokenStr string) (string, string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(serviceIssuer))
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}
	sub, _ := claims["sub"].(string)
	kind, ok := claims["kind"].(string)
	if !ok {
		return "", "", fmt.Errorf("invalid token claims")
	}
	return sub, kind, nil
}
