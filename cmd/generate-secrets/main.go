package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/utils"
	"github.com/playfield/marketplace-backend/pkg/jwt"
)

// Prints a JWT_SECRET for local development and, with -dev-user, an access
// token signed with it for calling the authenticated endpoints. The Stripe keys
// and webhook signing secret come from the Stripe dashboard or `stripe listen`.
func main() {
	bytes := flag.Int("bytes", utils.MinSecretBytes, "secret length in bytes")
	secret := flag.String("secret", "", "existing JWT_SECRET to sign the dev token with (skips generation)")
	devUser := flag.String("dev-user", "", "user id to mint a development access token for")
	expiry := flag.Duration("expiry", 24*time.Hour, "dev token lifetime")
	flag.Parse()

	if *secret == "" {
		generated, err := utils.GenerateSecret(*bytes)
		if err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		*secret = generated

		fmt.Println("Add this to your .env file:")
		fmt.Println()
		fmt.Printf("JWT_SECRET=%s\n", *secret)
		fmt.Println()
	}

	if *devUser != "" {
		userID, err := uuid.Parse(*devUser)
		if err != nil {
			log.Fatalf("Invalid -dev-user: %v", err)
		}
		token, err := jwt.NewService(*secret, *expiry).GenerateAccessToken(userID, []string{"athlete"})
		if err != nil {
			log.Fatalf("Failed to sign dev token: %v", err)
		}
		fmt.Printf("Authorization: Bearer %s\n", token)
		fmt.Println()
	}

	fmt.Println("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are issued by Stripe; never commit any of them.")
}
