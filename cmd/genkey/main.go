// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

// Command genkey mints an admin token for the Mosava API.
//
// The token is an HS256-signed JWT carrying the admin subject; pass it in
// the 'api_key' header (or as a Bearer token) on admin routes.
//
// Usage:
//
//	genkey -secret <JWT_SECRET> [-ttl 720h]
//
// A zero ttl produces a token without an expiry claim.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vannpham/mosava/internal/platform/sec"
)

func main() {
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (defaults to JWT_SECRET)")
	ttl := flag.Duration("ttl", 0, "token lifetime, e.g. 720h; zero means no expiry")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "genkey: a signing secret is required (-secret or JWT_SECRET)")
		os.Exit(2)
	}

	token, err := sec.NewTokenService(*secret).GenerateAdminToken(*ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genkey: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)

	if *ttl > 0 {
		fmt.Fprintf(os.Stderr, "expires: %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
	}
}
