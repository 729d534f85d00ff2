package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims carried by a gateway access token.
// The token is minted by the account service after login; the gateway only
// verifies it and trusts the identity it names.
type Payload struct {
	// StandardClaims embeds the JWT standard fields (Exp, Iat, Iss) used for
	// token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the stable user identifier this connection is allowed to announce.
	ID string `json:"id"`

	// Username is the display name associated with the identity.
	Username string `json:"username"`
}
