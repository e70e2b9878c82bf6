package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Quick utility to generate a bcrypt hash for an operator password
// Usage: go run scripts/hash_operator_password.go <email> <password>
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run scripts/hash_operator_password.go <email> <password>")
		fmt.Println("Example: go run scripts/hash_operator_password.go frontdesk@example.com 0i2rinbcp12yc31h")
		os.Exit(1)
	}

	email, password := os.Args[1], os.Args[2]

	// Generate bcrypt hash
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Error generating hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Bcrypt Hash: %s\n", string(hashedPassword))
	fmt.Printf("\nTo create or update the operator in MongoDB, run:\n")
	fmt.Printf("db.operators.updateOne(\n")
	fmt.Printf("  {\"email\": \"%s\"},\n", email)
	fmt.Printf("  {$set: {\"password\": \"%s\", \"active\": true}, $setOnInsert: {\"events\": []}},\n", string(hashedPassword))
	fmt.Printf("  {upsert: true}\n")
	fmt.Printf(")\n")
}
