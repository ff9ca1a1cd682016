package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Small utility for seeding accounts: prints the bcrypt hash of the
// password given on the command line.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run main.go <password>")
	}

	password := os.Args[1]

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	fmt.Println(string(hashedPassword))
}
