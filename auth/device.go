package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DeviceSigner issues and verifies the durable device cookie, a signed JWT
// whose subject keys the device's durable storage
type DeviceSigner struct {
	secret []byte
	maxAge time.Duration
}

// NewDeviceSigner creates a signer. An empty secret generates a random one,
// which invalidates existing device cookies on restart.
func NewDeviceSigner(secret string, maxAge time.Duration) (*DeviceSigner, error) {
	if strings.TrimSpace(secret) == "" {
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return nil, fmt.Errorf("generate device secret: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(generated)
	}
	return &DeviceSigner{secret: []byte(secret), maxAge: maxAge}, nil
}

// MaxAge is the device cookie lifetime
func (s *DeviceSigner) MaxAge() time.Duration {
	return s.maxAge
}

// NewDevice returns a fresh device id and its signed cookie value
func (s *DeviceSigner) NewDevice(now time.Time) (string, string, error) {
	id := uuid.New().String()
	token, err := s.Issue(id, now)
	if err != nil {
		return "", "", err
	}
	return id, token, nil
}

// Issue signs deviceID
func (s *DeviceSigner) Issue(deviceID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   deviceID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies a cookie value and returns the device id
func (s *DeviceSigner) Parse(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidDevice
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidDevice, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", ErrInvalidDevice
	}
	return claims.Subject, nil
}
