package main

import (
	"flag"
	"fmt"
	"log"

	"relayer-backend/internal/config"
	"relayer-backend/internal/handlers"
)

func main() {
	var username, configPath string
	flag.StringVar(&username, "username", "operator", "username to embed in the token")
	flag.StringVar(&configPath, "config", "", "path to config.yaml")
	flag.Parse()

	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	token, err := handlers.GenerateAdminJWTToken(username)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Println("============================================================")
	fmt.Println("Admin JWT Token Generated")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Printf("Username: %s\n", username)
	fmt.Println("Role:     admin")
	fmt.Println("Expires:  24h")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println(`  curl -H "Authorization: Bearer <token>" http://localhost:8080/api/admin/orders`)
}
