package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CaptchaVerifier checks a client-side captcha token against the verification
// service, keyed by the caller's IP.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, ip string) (bool, error)
}

const googleSiteVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// GoogleCaptcha verifies tokens against the Google reCAPTCHA siteverify API.
type GoogleCaptcha struct {
	Secret   string
	Endpoint string
	Client   *http.Client
}

// NewGoogleCaptcha constructs a verifier with the production endpoint.
func NewGoogleCaptcha(secret string) *GoogleCaptcha {
	return &GoogleCaptcha{
		Secret:   secret,
		Endpoint: googleSiteVerifyURL,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify posts the token to siteverify and reports the success flag.
func (g *GoogleCaptcha) Verify(ctx context.Context, token, ip string) (bool, error) {
	form := url.Values{}
	form.Set("secret", g.Secret)
	form.Set("response", token)
	form.Set("remoteip", ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	res, err := g.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha verify: %w", err)
	}
	defer res.Body.Close()

	var body struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("captcha decode: %w", err)
	}
	return body.Success, nil
}

var _ CaptchaVerifier = (*GoogleCaptcha)(nil)
