package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marshymcfloat/service-flow/internal/auth"
)

// minttoken issues an access token for operators and integration tests.
// Staff accounts live outside this service, so tokens are minted from the
// shared secret rather than exchanged for credentials.
func main() {
	var (
		secret = flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to JWT_SECRET)")
		userID = flag.String("user", "", "subject user id")
		roles  = flag.String("roles", "admin", "comma separated roles")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	if *secret == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: minttoken -secret <secret> -user <id> [-roles admin] [-ttl 1h]")
		os.Exit(2)
	}

	svc, err := auth.NewService(auth.Config{Secret: *secret, AccessTokenTTL: *ttl})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init auth:", err)
		os.Exit(1)
	}

	var roleList []string
	for _, role := range strings.Split(*roles, ",") {
		if trimmed := strings.TrimSpace(role); trimmed != "" {
			roleList = append(roleList, trimmed)
		}
	}

	token, expires, err := svc.IssueAccessToken(*userID, roleList)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintln(os.Stderr, "expires:", expires.Format(time.RFC3339))
}
