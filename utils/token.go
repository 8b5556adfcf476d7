package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenSecret signs the email tokens. Set from config at startup.
var TokenSecret []byte

type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify-email"
	PurposeDeleteAccount TokenPurpose = "delete-account"
)

const (
	VerifyEmailTTL   = 24 * time.Hour
	DeleteAccountTTL = time.Hour
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// EmailTokenClaims binds a token to a user, the address it was mailed to
// and the single action it authorises.
type EmailTokenClaims struct {
	Email   string       `json:"email"`
	Purpose TokenPurpose `json:"purpose"`
	jwt.StandardClaims
}

// GenerateEmailToken signs a token for userID that expires after ttl.
func GenerateEmailToken(userID, email string, purpose TokenPurpose, ttl time.Duration) (string, error) {
	if len(TokenSecret) == 0 {
		return "", errors.New("token secret is not configured")
	}
	now := time.Now()
	claims := EmailTokenClaims{
		Email:   email,
		Purpose: purpose,
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(TokenSecret)
}

// ParseEmailToken verifies signature, expiry and purpose. Callers still
// have to compare the email claim against the user's current address.
func ParseEmailToken(tokenString string, purpose TokenPurpose) (*EmailTokenClaims, error) {
	if len(TokenSecret) == 0 {
		return nil, errors.New("token secret is not configured")
	}

	claims := &EmailTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return TokenSecret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" || claims.Purpose != purpose {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
