package session

import (
	"crypto/ed25519"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethodSuiEd25519 signs the JWT signing string as a wallet personal
// message. The signature segment holds the serialized wallet signature.
//
// Sign takes an ed25519.PrivateKey; Verify takes the expected address.
var SigningMethodSuiEd25519 = &signingMethodSui{}

type signingMethodSui struct{}

func init() {
	jwt.RegisterSigningMethod(SigningMethodSuiEd25519.Alg(), func() jwt.SigningMethod {
		return SigningMethodSuiEd25519
	})
}

func (m *signingMethodSui) Alg() string { return "SuiEd25519" }

func (m *signingMethodSui) Sign(signingString string, key any) ([]byte, error) {
	priv, ok := key.(ed25519.PrivateKey)
	if !ok || len(priv) != ed25519.PrivateKeySize {
		return nil, jwt.ErrInvalidKeyType
	}
	return signPersonal(priv, []byte(signingString)), nil
}

func (m *signingMethodSui) Verify(signingString string, sig []byte, key any) error {
	address, ok := key.(string)
	if !ok || address == "" {
		return jwt.ErrInvalidKeyType
	}
	if err := VerifyPersonalMessage(address, []byte(signingString), sig); err != nil {
		return errors.Join(jwt.ErrSignatureInvalid, err)
	}
	return nil
}
