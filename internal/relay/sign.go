package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Sign returns base64(HMAC-SHA256(secret, "{timestampMillis}\n{secret}")),
// the signature DingTalk expects from signed custom robots.
func Sign(timestampMillis int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMillis, 10) + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignURL appends timestamp and sign query parameters to rawURL. With an
// empty secret rawURL is returned unchanged.
func SignURL(rawURL, secret string, now time.Time) (string, error) {
	if secret == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse webhook url: %w", err)
	}
	ts := now.UnixMilli()
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", Sign(ts, secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
