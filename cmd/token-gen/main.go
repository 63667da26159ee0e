package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"push-relay/middleware"
	"push-relay/store"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	secret := flag.String("secret", "", "JWT secret key (defaults to $JWT_SECRET)")
	issuer := flag.String("issuer", "push-relay-admin", "Token issuer")
	user := flag.String("user", "service", "Subject (caller username)")
	role := flag.String("role", store.RoleSender, "Role: 'admin' or 'sender'")
	ttl := flag.Duration("ttl", 365*24*time.Hour, "Token lifetime")
	flag.Parse()

	if !store.ValidRole(*role) {
		fmt.Fprintf(os.Stderr, "Invalid role: %s. Must be 'admin' or 'sender'\n", *role)
		os.Exit(2)
	}

	signed, err := signToken(*secret, *issuer, *user, *role, *ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}

// signToken mints a caller JWT the relay's auth middleware accepts.
func signToken(secret, issuer, user, role string, ttl time.Duration, now time.Time) (string, error) {
	middleware.SetJWTSecret(secret)

	claims := middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.GetJWTSecret())
}
