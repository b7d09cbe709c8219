package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims : mêmes claims que ceux émis par le service d'identité
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Viewer est le lecteur authentifié (Subject du token, sinon user_id)
type Viewer struct {
	ID       string
	Username string
}

// Verifier valide les access tokens RS256 avec la clé PUBLIQUE uniquement.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

func NewVerifier(publicKeyPEM []byte, issuer string) (*Verifier, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &Verifier{publicKey: pubKey, issuer: issuer}, nil
}

func (v *Verifier) Verify(tokenString string) (Viewer, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Empêche les attaques où l'attaquant force l'algo à "None" ou "HS256"
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return Viewer{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Viewer{}, errors.New("invalid token claims")
	}

	id := claims.Subject
	if id == "" {
		id = claims.UserID
	}
	if id == "" {
		return Viewer{}, errors.New("invalid token claims: no subject")
	}
	return Viewer{ID: id, Username: claims.Username}, nil
}
