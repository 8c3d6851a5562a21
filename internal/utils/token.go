package utils // package utils provides helpers for reservation claim tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Reservation claim tokens are short-lived HS256 JWTs returned to the client
// when a reservation is accepted.  The client presents the token on confirm,
// which lets the confirm endpoint verify that the caller is the party that
// made the reservation without any session state.  The token expires with
// the reservation itself, so a stolen token is worthless once the TTL runs
// out.

// NewReservationToken signs a claim token for the given reservation.  The
// claims are: sub (reservation id), holder, exp (the reservation's expiry)
// and iat.
func NewReservationToken(secret, reservationID, holder string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":    reservationID,
		"holder": holder,
		"exp":    expiresAt.Unix(),
		"iat":    time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// ParseReservationToken validates the signature and expiry of a claim token
// and returns the reservation id and holder it was issued for.
func ParseReservationToken(secret, token string) (reservationID, holder string, err error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", "", fmt.Errorf("invalid claim token")
	}
	sub, _ := claims["sub"].(string)
	h, _ := claims["holder"].(string)
	if sub == "" {
		return "", "", fmt.Errorf("claim token missing reservation id")
	}
	return sub, h, nil
}
