package bird

import (
	"crypto/rand"
	"encoding/hex"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/google/uuid"
)

// defaultUserAgent is the fallback User-Agent when none is configured.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// clientIdentity is generated once per client and sent on every request.
type clientIdentity struct {
	uuid     string
	deviceID string
}

func newClientIdentity() clientIdentity {
	return clientIdentity{uuid: uuid.NewString(), deviceID: uuid.NewString()}
}

// apiHeaders returns the headers the web app sends to the GraphQL API.
func apiHeaders(ct0, cookie, userAgent string, id clientIdentity, userID string) map[string]string {
	h := map[string]string{
		"authorization":             "Bearer " + BearerToken,
		"content-type":              "application/json",
		"x-csrf-token":              ct0,
		"x-twitter-active-user":     "yes",
		"x-twitter-auth-type":       "OAuth2Session",
		"x-twitter-client-language": "en",
		"x-client-uuid":             id.uuid,
		"x-twitter-client-deviceid": id.deviceID,
		"x-client-transaction-id":   transactionID(),
		"cookie":                    cookie,
		"user-agent":                userAgent,
		"accept":                    "*/*",
		"accept-language":           "en-US,en;q=0.9",
		"accept-encoding":           "gzip, deflate, br",
		"referer":                   "https://x.com/",
		"origin":                    "https://x.com",
		"sec-fetch-dest":            "empty",
		"sec-fetch-mode":            "cors",
		"sec-fetch-site":            "same-origin",
	}
	if userID != "" {
		h["x-twitter-client-user-id"] = userID
	}
	if ch := stealth.ClientHintsHeaders(userAgent); ch != nil {
		for k, v := range ch {
			h[k] = v
		}
	}
	return h
}

// transactionID returns 16 random bytes as hex.
func transactionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// headerOrder is the header order for TLS fingerprint consistency.
var headerOrder = []string{
	"authorization",
	"content-type",
	"x-csrf-token",
	"x-twitter-active-user",
	"x-twitter-auth-type",
	"x-twitter-client-language",
	"x-client-uuid",
	"x-twitter-client-deviceid",
	"x-twitter-client-user-id",
	"x-client-transaction-id",
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"sec-fetch-dest",
	"sec-fetch-mode",
	"sec-fetch-site",
	"cookie",
	"user-agent",
	"accept",
	"accept-language",
	"accept-encoding",
	"referer",
	"origin",
}
