package main

import (
	"fmt"
	"log"

	"github.com/vrental/booking-service/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for the booking service")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, paymentSecret, err := utils.GenerateServiceSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Add these to your .env file or deployment secrets.")
	fmt.Println("JWT_SECRET must match the identity service that issues tokens;")
	fmt.Println("PAYMENT_SIGNING_SECRET must be shared with the payment gateway.")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Printf("PAYMENT_SIGNING_SECRET=%s\n", paymentSecret)
	fmt.Println()
	fmt.Println("IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
