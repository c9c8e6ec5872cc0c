package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("SECxyz"))
	mac.Write([]byte("1700000000000\nSECxyz"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, Sign(1700000000000, "SECxyz"))
	assert.NotEqual(t, want, Sign(1700000000001, "SECxyz"))
}

func TestSignURL(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	got, err := SignURL("https://oapi.dingtalk.com/robot/send?access_token=tok", "SECxyz", now)
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "tok", q.Get("access_token"))
	assert.Equal(t, "1700000000000", q.Get("timestamp"))
	assert.Equal(t, Sign(1700000000000, "SECxyz"), q.Get("sign"))

	unsigned, err := SignURL("https://example.com/hook?a=1", "", now)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hook?a=1", unsigned)

	_, err = SignURL("http://%zz", "s", now)
	assert.Error(t, err)
}
