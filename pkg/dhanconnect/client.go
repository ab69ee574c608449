// Package dhanconnect is an HTTP client for the DhanHQ v2 order API. It
// covers session handling and the conditional order endpoints: Super Orders
// (entry + target + stop-loss) and Forever Orders (SINGLE / OCO triggers).
//
// Usage example:
//
//	dc := dhanconnect.New(dhanconnect.Config{ClientID: "1000000132", AccessToken: token})
//	ack, err := dc.PlaceSuperOrder(ctx, dhanconnect.SuperOrderRequest{...})
//	if err != nil { log.Fatal(err) }
//	fmt.Println("Order ID:", ack.OrderID)
package dhanconnect

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// Config holds credentials and transport options.
type Config struct {
	ClientID    string
	AccessToken string
	TOTPSecret  string // for GenerateSession; unused when AccessToken is set

	RootURL    string        // default: https://api.dhan.co
	Timeout    time.Duration // default: 7s
	Debug      bool
	ProxyURL   string // optional HTTP proxy URL
	DisableSSL bool   // if true, InsecureSkipVerify
}

// Client is safe for concurrent use once constructed.
type Client struct {
	clientID    string
	accessToken string
	totpSecret  string

	rootURL string
	debug   bool

	httpClient *http.Client
}

const defaultRoot = "https://api.dhan.co"

var routes = map[string]string{
	"auth.login": "/v2/auth/login",
	"auth.renew": "/v2/auth/renew",

	"super.place":  "/v2/super/orders",
	"super.modify": "/v2/super/orders/%s",    // order-id
	"super.cancel": "/v2/super/orders/%s/%s", // order-id, order-leg
	"super.book":   "/v2/super/orders",

	"forever.place":  "/v2/forever/orders",
	"forever.modify": "/v2/forever/orders/%s", // order-id
	"forever.cancel": "/v2/forever/orders/%s", // order-id
	"forever.book":   "/v2/forever/orders",
}

// New initializes the client.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.DisableSSL,
		},
	}
	if cfg.ProxyURL != "" {
		if purl, err := url.Parse(cfg.ProxyURL); err == nil {
			tr.Proxy = http.ProxyURL(purl)
		}
	}

	return &Client{
		clientID:    cfg.ClientID,
		accessToken: cfg.AccessToken,
		totpSecret:  cfg.TOTPSecret,
		rootURL:     strings.TrimRight(cfg.RootURL, "/"),
		debug:       cfg.Debug,
		httpClient:  &http.Client{Transport: tr, Timeout: cfg.Timeout},
	}
}

// ClientID returns the configured Dhan client id.
func (dc *Client) ClientID() string { return dc.clientID }

// SetAccessToken replaces the session token (after GenerateSession / renew).
func (dc *Client) SetAccessToken(t string) { dc.accessToken = t }

// AccessToken returns the current session token.
func (dc *Client) AccessToken() string { return dc.accessToken }

// APIError is a non-2xx or error-status response from the API.
type APIError struct {
	StatusCode int
	Code       string `json:"errorCode"`
	Message    string `json:"errorMessage"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dhan api: status=%d code=%s %s", e.StatusCode, e.Code, e.Message)
}

func (dc *Client) buildURL(route string, args ...any) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	if len(args) > 0 {
		uri = fmt.Sprintf(uri, args...)
	}
	return dc.rootURL + uri, nil
}

func (dc *Client) doJSON(ctx context.Context, method, reqURL string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("access-token", dc.accessToken)
	req.Header.Set("client-id", dc.clientID)

	if dc.debug {
		log.Printf("[dhanconnect] %s %s payload=%+v", method, reqURL, payload)
	}

	resp, err := dc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if dc.debug {
		log.Printf("[dhanconnect] response code=%d body=%s", resp.StatusCode, string(raw))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("couldn't parse JSON response: %w", err)
		}
	}
	return nil
}

// ---- Session ----

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiryTime  string `json:"expiryTime"`
}

// GenerateSession logs in with the configured client id and a fresh TOTP
// code, and stores the returned access token on the client.
func (dc *Client) GenerateSession(ctx context.Context) error {
	if dc.totpSecret == "" {
		return errors.New("dhanconnect: no TOTP secret configured")
	}
	code, err := totp.GenerateCode(dc.totpSecret, time.Now())
	if err != nil {
		return fmt.Errorf("totp: %w", err)
	}

	reqURL, err := dc.buildURL("auth.login")
	if err != nil {
		return err
	}
	var res loginResponse
	err = dc.doJSON(ctx, http.MethodPost, reqURL, map[string]string{
		"dhanClientId": dc.clientID,
		"totp":         code,
	}, &res)
	if err != nil {
		return err
	}
	if res.AccessToken == "" {
		return errors.New("dhanconnect: login returned no access token")
	}
	dc.accessToken = res.AccessToken
	return nil
}

// RenewAccessToken exchanges the current token for a fresh one.
func (dc *Client) RenewAccessToken(ctx context.Context) error {
	reqURL, err := dc.buildURL("auth.renew")
	if err != nil {
		return err
	}
	var res loginResponse
	if err := dc.doJSON(ctx, http.MethodPost, reqURL, nil, &res); err != nil {
		return err
	}
	if res.AccessToken == "" {
		return errors.New("dhanconnect: renew returned no access token")
	}
	dc.accessToken = res.AccessToken
	return nil
}
