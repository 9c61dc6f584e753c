// Package session issues the short-lived credentials a requester presents to
// key servers. A credential binds a wallet address to a program scope and to
// an ephemeral X25519 key the servers encrypt their shares to.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTTL = 10 * time.Minute
	MinTTL     = time.Minute
	MaxTTL     = 30 * time.Minute
)

// Claims is the JWT payload of a credential.
type Claims struct {
	jwt.RegisteredClaims
	Scope      string `json:"scope"`
	SessionKey string `json:"sk"`
}

// Credential is a session credential. Values are never mutated; signing
// produces a new value.
type Credential struct {
	Address    string
	ScopeID    string
	IssuedAt   time.Time
	Expiry     time.Time
	SessionKey []byte

	sessionPriv []byte
	signature   []byte
}

// Issue creates an unsigned credential for address valid for ttl from now.
// A zero ttl means DefaultTTL.
func Issue(address, scopeID string, ttl time.Duration, now time.Time) (*Credential, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl < MinTTL || ttl > MaxTTL {
		return nil, fmt.Errorf("%w: ttl %s outside [%s, %s]", common.ErrInvalidCredential, ttl, MinTTL, MaxTTL)
	}
	if !strings.HasPrefix(address, "0x") || scopeID == "" {
		return nil, fmt.Errorf("%w: address and scope are required", common.ErrInvalidCredential)
	}

	priv, pub, err := cryptox.GenerateX25519()
	if err != nil {
		return nil, err
	}

	// JWT dates carry whole seconds
	issued := now.Truncate(time.Second)
	return &Credential{
		Address:     address,
		ScopeID:     scopeID,
		IssuedAt:    issued,
		Expiry:      issued.Add(ttl),
		SessionKey:  pub,
		sessionPriv: priv,
	}, nil
}

func (c *Credential) claims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Address,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.Expiry),
		},
		Scope:      c.ScopeID,
		SessionKey: base64.RawURLEncoding.EncodeToString(c.SessionKey),
	}
}

// PersonalMessage is the challenge the wallet signs: the JWT signing string.
func (c *Credential) PersonalMessage() ([]byte, error) {
	s, err := jwt.NewWithClaims(SigningMethodSuiEd25519, c.claims()).SigningString()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// AttachSignature verifies sig over PersonalMessage and returns a signed
// copy. A credential can be signed once.
func (c *Credential) AttachSignature(sig []byte) (*Credential, error) {
	if c.signature != nil {
		return nil, fmt.Errorf("%w: already signed", common.ErrInvalidCredential)
	}
	msg, err := c.PersonalMessage()
	if err != nil {
		return nil, err
	}
	if err := VerifyPersonalMessage(c.Address, msg, sig); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidCredential, err)
	}

	signed := *c
	signed.signature = append([]byte(nil), sig...)
	return &signed, nil
}

// Sign asks signer for a signature and attaches it.
func (c *Credential) Sign(ctx context.Context, signer Signer) (*Credential, error) {
	if signer.Address() != c.Address {
		return nil, fmt.Errorf("%w: signer address mismatch", common.ErrInvalidCredential)
	}
	msg, err := c.PersonalMessage()
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignPersonalMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("sign personal message: %w", err)
	}
	return c.AttachSignature(sig)
}

func (c *Credential) Signed() bool { return c.signature != nil }

// Expired reports whether now is at or past the expiry.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.Expiry)
}

// Token returns the compact JWT presented to key servers.
func (c *Credential) Token() (string, error) {
	if c.signature == nil {
		return "", fmt.Errorf("%w: not signed", common.ErrInvalidCredential)
	}
	tok := jwt.NewWithClaims(SigningMethodSuiEd25519, c.claims())
	s, err := tok.SigningString()
	if err != nil {
		return "", err
	}
	return s + "." + tok.EncodeSegment(c.signature), nil
}

// SessionPrivateKey returns the X25519 key used to open shares released to
// this credential.
func (c *Credential) SessionPrivateKey() []byte {
	return c.sessionPriv
}

// Verified is what a key server learns from a valid token.
type Verified struct {
	Address    string
	ScopeID    string
	Expiry     time.Time
	SessionKey []byte
}

// Verify checks token's signature, address binding, scope and expiry at now.
func Verify(token, scopeID string, now time.Time) (*Verified, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return claims.Subject, nil
	},
		jwt.WithValidMethods([]string{SigningMethodSuiEd25519.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrExpiredCredential
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidCredential, err)
	}

	if claims.Scope != scopeID {
		return nil, fmt.Errorf("%w: scope mismatch", common.ErrInvalidCredential)
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", common.ErrInvalidCredential)
	}
	exp := claims.ExpiresAt.Time
	if exp.Sub(claims.IssuedAt.Time) > MaxTTL {
		return nil, fmt.Errorf("%w: lifetime too long", common.ErrInvalidCredential)
	}

	sk, err := base64.RawURLEncoding.DecodeString(claims.SessionKey)
	if err != nil || len(sk) != 32 {
		return nil, fmt.Errorf("%w: bad session key", common.ErrInvalidCredential)
	}

	return &Verified{
		Address:    claims.Subject,
		ScopeID:    claims.Scope,
		Expiry:     exp,
		SessionKey: sk,
	}, nil
}
