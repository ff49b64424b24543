package microsoft

import (
	"strings"

	"golang.org/x/oauth2"
)

// DefaultAuthorityBase is the Microsoft identity platform root.
const DefaultAuthorityBase = "https://login.microsoftonline.com"

// SetupHint is shown when the app registration settings are missing.
const SetupHint = "Register an app at portal.azure.com > App registrations, add a web redirect URI and a client secret"

// Endpoint returns the v2.0 authorize and token endpoints for tenant.
// The client secret is sent in the form body, as Microsoft expects for web apps.
func Endpoint(authorityBase, tenant string) oauth2.Endpoint {
	base := strings.TrimRight(authorityBase, "/")
	if base == "" {
		base = DefaultAuthorityBase
	}
	return oauth2.Endpoint{
		AuthURL:   base + "/" + tenant + "/oauth2/v2.0/authorize",
		TokenURL:  base + "/" + tenant + "/oauth2/v2.0/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}
