package bluecode

import (
	"net/url"
	"strings"
)

const (
	sandboxAPI    = "https://merchant-api.bluecode.biz/v4"
	productionAPI = "https://merchant-api.bluecode.com/v4"

	sandboxToken    = "https://merchant-api.bluecode.biz/oauth2"
	productionToken = "https://merchant-api.bluecode.com/oauth2"

	sandboxPortal    = "https://merchant-portal.bluecode.biz"
	productionPortal = "https://merchant-portal.bluecode.com"
)

// Endpoints are the three provider hosts. Empty fields fall back to the
// sandbox or production defaults.
type Endpoints struct {
	API    string
	Token  string
	Portal string
}

func (e Endpoints) api(sandbox bool, op string) string {
	return join(pick(e.API, sandbox, sandboxAPI, productionAPI), op)
}

func (e Endpoints) token(sandbox bool, op string) string {
	return join(pick(e.Token, sandbox, sandboxToken, productionToken), op)
}

func (e Endpoints) portal(sandbox bool, path string) string {
	return join(pick(e.Portal, sandbox, sandboxPortal, productionPortal), path)
}

func pick(override string, sandbox bool, test, prod string) string {
	if override != "" {
		return override
	}
	if sandbox {
		return test
	}
	return prod
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// AuthorizeURL builds the merchant portal consent URL.
func (e Endpoints) AuthorizeURL(sandbox bool, clientID, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	q.Set("scope", "merchant-api")
	return e.portal(sandbox, "oauth2/authorize") + "?" + q.Encode()
}
