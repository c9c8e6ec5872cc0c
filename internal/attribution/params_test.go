package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractParams(t *testing.T) {
	p := ExtractParams("https://sportstreamhd.com/?utm_source=google&utm_medium=cpc&gclid=g1&other=x&utm_term=")
	assert.Equal(t, Params{ParamSource: "google", ParamMedium: "cpc", ParamGCLID: "g1"}, p)

	assert.Empty(t, ExtractParams("https://sportstreamhd.com/"))
	assert.Empty(t, ExtractParams("%%%"))
	assert.Empty(t, ExtractParams(""))
}

func TestMerge(t *testing.T) {
	base := Params{ParamSource: "old", ParamCampaign: "c"}
	over := Params{ParamSource: "new", ParamCampaign: ""}
	assert.Equal(t, Params{ParamSource: "new", ParamCampaign: "c"}, Merge(base, over))
	assert.Equal(t, Params{}, Merge(nil, nil))
}

func TestDecorateLink(t *testing.T) {
	params := Params{ParamSource: "google", ParamGCLID: "g1"}

	got := DecorateLink("/contact", params)
	assert.Equal(t, "/contact?gclid=g1&utm_source=google", got)

	got = DecorateLink("https://sportstreamhd.com/contact?utm_source=old&x=1", params)
	assert.Equal(t, "https://sportstreamhd.com/contact?gclid=g1&utm_source=google&x=1", got)

	assert.Equal(t, "/about", DecorateLink("/about", params))
	assert.Equal(t, "/contact", DecorateLink("/contact", Params{}))
}

func TestDecodeKeyword(t *testing.T) {
	assert.Equal(t, "rtmp streaming", decodeKeyword("rtmp%20streaming"))
	assert.Equal(t, "100%", decodeKeyword("100%"))
	assert.Equal(t, "plain", decodeKeyword("plain"))
}
