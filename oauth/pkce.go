package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Code challenge methods per RFC 7636.
const (
	ChallengeS256  = "S256"
	ChallengePlain = "plain"
)

// GenerateStateToken returns a cryptographically random, URL-safe token used
// as the OAuth state parameter and as the primary lookup key for the pending
// flow record.
func GenerateStateToken() (string, error) {
	return randomToken(32)
}

// GenerateCodeVerifier returns a PKCE code verifier. 32 random bytes encode to
// 43 characters, the RFC 7636 minimum, using the unreserved character set.
func GenerateCodeVerifier() (string, error) {
	return randomToken(32)
}

// CodeChallenge derives the code challenge for a verifier using the given
// method. Providers that only support "plain" get the verifier back as is.
func CodeChallenge(verifier, method string) (string, error) {
	switch method {
	case ChallengeS256:
		sum := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil
	case ChallengePlain:
		return verifier, nil
	default:
		return "", fmt.Errorf("unsupported code challenge method: %s", method)
	}
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
