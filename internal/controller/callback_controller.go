package controller

import (
	"context"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"

	"github.com/cassiomorais/bluecode/internal/application/callback"
	"github.com/cassiomorais/bluecode/internal/application/messages"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/rs/zerolog"
)

const (
	maxNotifyBodySize = 64 << 10

	// NoticeParam carries the buyer notice on the storefront redirect.
	NoticeParam = "bluecode_notice"
)

// CallbackHandler applies provider verdicts to orders.
type CallbackHandler interface {
	HandleRedirect(ctx context.Context, orderID int64, state string) (*callback.Verdict, error)
	HandleNotify(ctx context.Context, body []byte) (*callback.Verdict, error)
}

// Authorizer runs the merchant side of the OAuth2 authorization code flow.
type Authorizer interface {
	AuthorizeURL(ctx context.Context) (string, error)
	CompleteAuthorization(ctx context.Context, code, state string) error
}

type callbackRoute struct {
	method string
	typ    string
}

// CallbackController serves the single provider callback endpoint. Requests
// are dispatched on method and the type query parameter.
type CallbackController struct {
	callbacks CallbackHandler
	auth      Authorizer
	catalog   messages.Catalog
	routes    map[callbackRoute]http.HandlerFunc
	logger    zerolog.Logger
}

func NewCallbackController(callbacks CallbackHandler, auth Authorizer, catalog messages.Catalog, logger zerolog.Logger) *CallbackController {
	c := &CallbackController{
		callbacks: callbacks,
		auth:      auth,
		catalog:   catalog,
		logger:    logger.With().Str("component", "callback_http").Logger(),
	}
	c.routes = map[callbackRoute]http.HandlerFunc{
		{http.MethodGet, "redirect"}: c.redirect,
		{http.MethodPost, "notify"}:  c.notify,
		{http.MethodGet, "bcoauth2"}: c.oauth2,
	}
	return c
}

// Dispatch handles /api/bluecode.
func (c *CallbackController) Dispatch(w http.ResponseWriter, r *http.Request) {
	h, ok := c.routes[callbackRoute{r.Method, r.URL.Query().Get("type")}]
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unsupported callback", Code: "unsupported_callback"})
		return
	}
	h(w, r)
}

// redirect handles GET ?type=redirect&id=&state= after the buyer leaves the
// provider's page.
func (c *CallbackController) redirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID, err := parseOrderID(q.Get("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	v, err := c.callbacks.HandleRedirect(r.Context(), orderID, q.Get("state"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, withNotice(v.RedirectURL, v.Notice), http.StatusFound)
}

// notify handles the provider's POST ?type=notify. Any non-2xx reply makes
// the provider deliver again.
func (c *CallbackController) notify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotifyBodySize))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("body", "unreadable or too large"))
		return
	}

	v, err := c.callbacks.HandleNotify(r.Context(), body)
	if err != nil {
		var ve *domainErrors.ValidationError
		if !errors.As(err, &ve) {
			c.logger.Error().Err(err).Msg("notify could not be applied")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NotifyResponse{OrderID: v.OrderID, State: v.State, Applied: v.Applied})
}

var oauthPage = template.Must(template.New("oauth").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head><meta charset="utf-8"><title>Bluecode</title></head>
<body>
<p>{{.Message}}</p>
<button type="button" onclick="window.close()">{{.Close}}</button>
</body>
</html>
`))

type oauthPageData struct {
	Lang    string
	Message string
	Close   string
}

// oauth2 handles the merchant returning from the provider portal with an
// authorization code. The reply is a page for the popup the merchant used.
func (c *CallbackController) oauth2(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")

	status := http.StatusOK
	msg := messages.OAuthSucceeded
	switch {
	case code == "":
		status, msg = http.StatusBadRequest, messages.OAuthNoCode
	default:
		if err := c.auth.CompleteAuthorization(r.Context(), code, q.Get("state")); err != nil {
			c.logger.Error().Err(err).Msg("oauth2 authorization failed")
			status, msg = http.StatusBadRequest, messages.OAuthFailed
			if errors.Is(err, domainErrors.ErrAuthFailure) {
				status = http.StatusBadGateway
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := oauthPage.Execute(w, oauthPageData{
		Lang:    c.catalog.Language(),
		Message: c.catalog.Text(msg),
		Close:   c.catalog.Text(messages.OAuthClose),
	}); err != nil {
		c.logger.Error().Err(err).Msg("render oauth2 page")
	}
}

// withNotice appends the buyer notice to target.
func withNotice(target, notice string) string {
	if target == "" {
		target = "/"
	}
	if notice == "" {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set(NoticeParam, notice)
	u.RawQuery = q.Encode()
	return u.String()
}
