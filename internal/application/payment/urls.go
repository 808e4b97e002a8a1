package payment

import (
	"net/url"
	"strconv"
	"strings"
)

// CallbackPath is where the provider sends buyers and notifications back.
const CallbackPath = "/api/bluecode"

// Redirect states carried on the return URLs.
const (
	RedirectSuccess = "success"
	RedirectFail    = "fail"
	RedirectCancel  = "cancel"
)

// CallbackURLs are the return and notify URLs registered for one order.
type CallbackURLs struct {
	Success string
	Failure string
	Cancel  string
	Notify  string
}

// NewCallbackURLs derives the URLs for orderID under the public base URL.
func NewCallbackURLs(baseURL string, orderID int64) CallbackURLs {
	base := strings.TrimRight(baseURL, "/") + CallbackPath
	redirect := func(state string) string {
		q := url.Values{}
		q.Set("type", "redirect")
		q.Set("state", state)
		q.Set("id", strconv.FormatInt(orderID, 10))
		return base + "?" + q.Encode()
	}
	return CallbackURLs{
		Success: redirect(RedirectSuccess),
		Failure: redirect(RedirectFail),
		Cancel:  redirect(RedirectCancel),
		Notify:  base + "?type=notify",
	}
}
