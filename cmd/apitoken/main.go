// Command apitoken issues bearer tokens for callers of the sync API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/erp/syncengine/internal/infrastructure/auth"
	"github.com/erp/syncengine/internal/infrastructure/config"
)

func main() {
	var (
		tenant  string
		subject string
		scopes  string
	)
	flag.StringVar(&tenant, "tenant", "", "Tenant ID (required)")
	flag.StringVar(&subject, "subject", "operator", "Calling system named in the token")
	flag.StringVar(&scopes, "scopes", strings.Join(auth.AllScopes(), ","), "Comma separated scopes")
	flag.Parse()

	tenantID, err := uuid.Parse(tenant)
	if err != nil {
		fmt.Fprintln(os.Stderr, "a valid -tenant UUID is required")
		os.Exit(2)
	}

	granted, err := parseScopes(scopes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.NewTokenService(cfg.Auth).Issue(tenantID, subject, granted)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(token)
}

func parseScopes(raw string) ([]string, error) {
	known := make(map[string]bool)
	for _, s := range auth.AllScopes() {
		known[s] = true
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !known[s] {
			return nil, fmt.Errorf("unknown scope %q, expected one of %s", s, strings.Join(auth.AllScopes(), ", "))
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one scope is required")
	}
	return out, nil
}
