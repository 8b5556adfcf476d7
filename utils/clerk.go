package utils

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/golang-jwt/jwt"
)

var ErrInvalidSession = errors.New("invalid session")

// SessionVerifier turns a Clerk session token into the Clerk user id.
type SessionVerifier interface {
	Verify(token string) (string, error)
}

type clerkSessionClaims struct {
	AuthorizedParty string `json:"azp,omitempty"`
	jwt.StandardClaims
}

// ClerkSessionVerifier checks Clerk session JWTs offline against the
// instance's PEM public key.
type ClerkSessionVerifier struct {
	key               *rsa.PublicKey
	authorizedParties map[string]bool
}

func NewClerkSessionVerifier(pemKey string, authorizedParties []string) (*ClerkSessionVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Clerk JWT key: %w", err)
	}
	parties := make(map[string]bool, len(authorizedParties))
	for _, p := range authorizedParties {
		parties[strings.TrimRight(p, "/")] = true
	}
	return &ClerkSessionVerifier{key: key, authorizedParties: parties}, nil
}

func (v *ClerkSessionVerifier) Verify(tokenString string) (string, error) {
	claims := &clerkSessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}
	if claims.Subject == "" {
		return "", ErrInvalidSession
	}
	if len(v.authorizedParties) > 0 && claims.AuthorizedParty != "" && !v.authorizedParties[claims.AuthorizedParty] {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

// ClerkUser is the subset of Clerk's user object the platform keeps.
type ClerkUser struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// IdentityFromClerk flattens a Clerk user, as returned by the Backend API
// and embedded in user.* webhook events. The primary address wins.
func IdentityFromClerk(u *clerk.User) ClerkUser {
	id := ClerkUser{ID: u.ID}
	if u.FirstName != nil {
		id.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		id.LastName = *u.LastName
	}
	for _, e := range u.EmailAddresses {
		if e != nil && u.PrimaryEmailAddressID != nil && e.ID == *u.PrimaryEmailAddressID {
			id.Email = e.EmailAddress
			break
		}
	}
	if id.Email == "" && len(u.EmailAddresses) > 0 && u.EmailAddresses[0] != nil {
		id.Email = u.EmailAddresses[0].EmailAddress
	}
	return id
}

// IdentityProvider is the slice of Clerk's Backend API the handlers call.
type IdentityProvider interface {
	GetUser(ctx context.Context, clerkID string) (*ClerkUser, error)
	DeleteUser(ctx context.Context, clerkID string) error
}

// Clerk is the process-wide identity provider.
var Clerk IdentityProvider

// ClerkClient backs IdentityProvider with the Clerk Go SDK.
type ClerkClient struct {
	users *clerkuser.Client
}

// NewClerkClient builds a Backend API client. An empty apiURL keeps the
// SDK's default host.
func NewClerkClient(apiURL, secretKey string, httpClient *http.Client) *ClerkClient {
	config := &clerk.ClientConfig{}
	config.Key = clerk.String(secretKey)
	if apiURL != "" {
		config.URL = clerk.String(strings.TrimRight(apiURL, "/"))
	}
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	config.HTTPClient = httpClient
	return &ClerkClient{users: clerkuser.NewClient(config)}
}

func (c *ClerkClient) GetUser(ctx context.Context, clerkID string) (*ClerkUser, error) {
	u, err := c.users.Get(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("clerk: get user %s: %w", clerkID, err)
	}
	id := IdentityFromClerk(u)
	return &id, nil
}

// DeleteUser removes the Clerk identity. A user already gone counts as deleted.
func (c *ClerkClient) DeleteUser(ctx context.Context, clerkID string) error {
	_, err := c.users.Delete(ctx, clerkID)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clerk: delete user %s: %w", clerkID, err)
	}
	return nil
}
