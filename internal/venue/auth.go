package venue

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"time"
)

// Credentials is the venue API key/secret pair, loaded from config (spec §6:
// "env/credential loading" is named out-of-scope internals but the shape
// they're loaded into is in scope).
type Credentials struct {
	APIKey    string
	APISecret string
}

// Auth signs REST requests and private WS channel subscriptions with
// HMAC-SHA512, per spec §6. Grounded on
// _examples/original_source/auth_gateio.py's gen_sign (REST) and
// ws_gateio.py's inline channel-signing (WS), replacing the teacher's
// EIP-712/HMAC-SHA256 wallet-auth scheme (internal/exchange/auth.go's
// signClobAuth/buildHMAC) — this venue has no on-chain wallet, only a plain
// API key pair.
type Auth struct {
	creds Credentials
}

// NewAuth creates an Auth from venue credentials.
func NewAuth(creds Credentials) *Auth {
	return &Auth{creds: creds}
}

// RESTHeaders computes the KEY/Timestamp/SIGN headers for one REST request.
// message = METHOD\nURL\nQUERY\nSHA512(body)\nTIMESTAMP, exactly as
// auth_gateio.py's gen_sign constructs it.
func (a *Auth) RESTHeaders(method, urlPath, query, body string) map[string]string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	hashedBody := sha512.Sum512([]byte(body))
	message := method + "\n" + urlPath + "\n" + query + "\n" + hex.EncodeToString(hashedBody[:]) + "\n" + ts

	mac := hmac.New(sha512.New, []byte(a.creds.APISecret))
	mac.Write([]byte(message))
	sign := hex.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"KEY":          a.creds.APIKey,
		"Timestamp":    ts,
		"SIGN":         sign,
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
}

// WSChannelSign signs a private WS channel subscription. message =
// "channel=<channel>&event=subscribe&time=<t>", exactly as ws_gateio.py
// constructs it for subscribe_user_trades/subscribe_user_orders/
// subscribe_user_balances.
func (a *Auth) WSChannelSign(channel string, t int64) string {
	message := "channel=" + channel + "&event=subscribe&time=" + strconv.FormatInt(t, 10)

	mac := hmac.New(sha512.New, []byte(a.creds.APISecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// APIKey returns the configured API key, used as the WS auth header's KEY
// field.
func (a *Auth) APIKey() string {
	return a.creds.APIKey
}
