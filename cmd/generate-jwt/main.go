package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"bridge-relay/internal/config"
	"bridge-relay/internal/handlers"
)

// Mints an API token for local testing without going through the admin
// login flow. Requires the same config file the server runs with so the
// signing secret matches.
func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	address := flag.String("address", "", "caller chain address to bind")
	role := flag.String("role", "caller", "role claim (admin|caller)")
	hours := flag.Int("hours", 24, "token lifetime in hours")
	flag.Parse()

	if *address == "" {
		fmt.Fprintln(os.Stderr, "usage: generate-jwt -address 0x... [-role caller] [-hours 24]")
		os.Exit(1)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	token, err := handlers.GenerateAPIToken(*address, *role, time.Duration(*hours)*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "address=%s role=%s expires=%s\n", *address, *role, time.Now().Add(time.Duration(*hours)*time.Hour).Format(time.RFC3339))
}
