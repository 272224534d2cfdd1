package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hammx/packages/auth"
	"github.com/abdul-hamid-achik/hammx/packages/auth/oauth2"
)

// parseAuth turns an --auth value or a config auth entry into credentials:
//
//	user:pass                                       basic auth
//	TOKEN                                           bearer token
//	oauth2 client_credentials URL ID SECRET [SCOPES]
//	oauth2 password URL ID SECRET USER PASS [SCOPES]
//	aws ACCESS_KEY SECRET_KEY REGION SERVICE
func parseAuth(s string) (auth.Authenticator, error) {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}

	switch strings.ToLower(fields[0]) {
	case "oauth2":
		cfg, err := oauth2.ParseSpec(fields[1:])
		if err != nil {
			return nil, err
		}
		return oauth2.NewProvider(cfg), nil

	case "aws":
		if len(fields) != 5 {
			return nil, fmt.Errorf("aws auth requires: aws accessKey secretKey region service")
		}
		return &auth.AWSSigV4{
			AccessKey: fields[1],
			SecretKey: fields[2],
			Region:    fields[3],
			Service:   fields[4],
		}, nil
	}

	return auth.ParseCredential(s), nil
}

// authKind names the scheme of an auth value for display.
func authKind(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	switch kind := strings.ToLower(fields[0]); kind {
	case "oauth2", "aws":
		return kind
	}
	if strings.Contains(s, ":") {
		return "basic"
	}
	return "bearer"
}
