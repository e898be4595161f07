// Command devtoken prints an access token accepted by the appointment
// service, for local testing against a running stack.
//
//	devtoken -user 42 -role user
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/specialist-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()
	user := flag.Uint64("user", 1, "user id placed in sub")
	role := flag.String("role", "user", "role claim (user, admin, service)")
	ttl := flag.Int("ttl", 60, "lifetime in minutes")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (defaults to $JWT_SECRET)")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "devtoken: no secret; set JWT_SECRET or pass -secret")
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(*secret, *user, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
