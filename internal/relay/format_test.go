package relay

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/leadrelay/internal/attribution"
	"github.com/patrickwarner/leadrelay/internal/models"
)

var testNow = time.Date(2025, 3, 1, 8, 30, 15, 0, time.UTC)

func testFormatter() *Formatter {
	f := NewFormatter(nil, nil, "Asia/Shanghai", "SportStreamHD")
	f.Now = func() time.Time { return testNow }
	return f
}

func googleSnapshot() *models.AttributionSnapshot {
	return &models.AttributionSnapshot{
		Source:        "google",
		Medium:        models.MediumOrganic,
		Keyword:       "rtmp streaming",
		KeywordSource: models.KeywordOrganic,
		Referrer:      "https://www.google.com/search?q=rtmp+streaming",
		LandingPage:   "https://sportstreamhd.com/",
		Device: models.DeviceInfo{
			DeviceClass:     models.DeviceMobile,
			Browser:         "Safari",
			OS:              "iOS",
			PrimaryLanguage: "zh-CN",
			AllLanguages:    []string{"zh-CN", "en"},
		},
	}
}

func TestFormatSimpleMapsSports(t *testing.T) {
	sub := &models.SimpleSubmission{
		Email:           "lead@example.com",
		ContactMethod:   "@alice_dev",
		SportsInterests: []string{"football", "esports"},
		UseCase:         models.UseCaseOBSStreaming,
	}
	msg, err := testFormatter().Format(sub, "8.8.8.8")
	require.NoError(t, err)

	assert.Equal(t, "🎯 新客户咨询 - SportStreamHD", msg.Title)
	assert.Contains(t, msg.Text, "⚽ 足球, 🎮 电竞")
	assert.Contains(t, msg.Text, "仅网络主播在OBS直播使用")
	assert.Contains(t, msg.Text, "**✈️ 联系方式:** @alice_dev")
	assert.NotContains(t, msg.Text, "主播规模")
	assert.NotContains(t, msg.Text, "直播平台")
	assert.NotContains(t, msg.Text, "详细需求说明")

	sub.StreamerType = "team"
	msg, err = testFormatter().Format(sub, "8.8.8.8")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "**👥 主播规模:** 主播团体")
}

func TestFormatSimpleQQIcon(t *testing.T) {
	sub := &models.SimpleSubmission{Email: "a@b.co", ContactMethod: "12345678", SportsInterests: []string{"curling"}, UseCase: "custom_case"}
	msg, err := testFormatter().Format(sub, "")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "**🐧 联系方式:** 12345678")
	// unmapped values are shown raw
	assert.Contains(t, msg.Text, "curling")
	assert.Contains(t, msg.Text, "custom_case")
}

func TestFormatTimestampInShanghai(t *testing.T) {
	msg, err := testFormatter().Format(&models.SimpleSubmission{Email: "a@b.co"}, "")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "**⏰ 咨询时间:** 2025/03/01 16:30:15")
}

func TestFormatDetailed(t *testing.T) {
	sub := &models.DetailedSubmission{
		CompanyName:       "Acme Sports",
		ContactName:       "Li Lei",
		Position:          "CTO",
		Email:             "li@acme.com",
		Phone:             "+86 138 0000 0000",
		SportsInterests:   []string{"basketball"},
		IntegrationType:   "rtmp",
		TargetAudience:    "Fans in SEA",
		ConcurrentViewers: "10000-100000",
		TechStack:         "Go + React",
		NeedAPI:           true,
		LaunchTimeline:    "3months",
		BudgetRange:       "5000-15000",
		CooperationModel:  "yearly",
	}
	msg, err := testFormatter().Format(sub, "")
	require.NoError(t, err)

	assert.Equal(t, "🎯 高价值客户咨询 - SportStreamHD", msg.Title)
	for _, want := range []string{
		"### 📋 基本信息", "### 💼 业务需求", "### ⚙️ 技术信息", "### 💰 商务信息",
		"**👤 联系人:** Li Lei (CTO)",
		"**🔧 服务需求:** 🔴 RTMP推流接入",
		"**👀 并发观看人数:** 10,000-100,000人",
		"**🔌 需要API接口:** ✅ 是",
		"**📅 预计上线时间:** 3个月内",
		"**💳 预算范围:** $5,000-$15,000/月",
		"**🤝 合作模式:** 按年订阅",
		"🚨 **高价值客户！请优先处理，建议在2小时内与客户取得联系！**",
	} {
		assert.Contains(t, msg.Text, want)
	}
	for _, absent := range []string{"现有产品链接", "特殊需求", "其他需求", "undefined", "<nil>"} {
		assert.NotContains(t, msg.Text, absent)
	}
}

func TestFormatOptionalFieldsVerbatim(t *testing.T) {
	sub := &models.DetailedSubmission{
		CompanyName: "Acme", ContactName: "Li", Position: "PM", Email: "li@acme.com", Phone: "123",
		SportsInterests: []string{"tennis"}, IntegrationType: "api", TargetAudience: "all",
		ConcurrentViewers: "1-1000", TechStack: "PHP", LaunchTimeline: "flexible",
		BudgetRange: "50000+", CooperationModel: "custom",
		ExistingProductURL:  "https://acme.example/app",
		SpecialRequirements: "需要多语言字幕",
		OtherRequirements:   "invoice in USD",
	}
	msg, err := testFormatter().Format(sub, "")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "**🌐 现有产品链接:** https://acme.example/app")
	assert.Contains(t, msg.Text, "**📝 特殊需求:** 需要多语言字幕")
	assert.Contains(t, msg.Text, "**📋 其他需求:** invoice in USD")
	assert.Contains(t, msg.Text, "**🔌 需要API接口:** ❌ 否")
}

func TestFormatAttributionOrganic(t *testing.T) {
	sub := &models.SimpleSubmission{Email: "a@b.co", UserSource: googleSnapshot()}
	msg, err := testFormatter().Format(sub, "8.8.8.8")
	require.NoError(t, err)

	assert.Contains(t, msg.Text, "🔍 自然搜索 - google")
	assert.Contains(t, msg.Text, "🔍 搜索关键词: rtmp streaming")
	assert.Contains(t, msg.Text, "📱 mobile - Safari/iOS")
	assert.Contains(t, msg.Text, "🌐 浏览器语言: 简体中文 (zh-CN)")
	assert.Contains(t, msg.Text, "🌍 IP: 8.8.8.8")
	// the organic referrer only repeats the keyword, and the root landing page says nothing
	assert.NotContains(t, msg.Text, "来源页面")
	assert.NotContains(t, msg.Text, "着陆页面")
}

func TestFormatAttributionPaid(t *testing.T) {
	snap := &models.AttributionSnapshot{
		Source:        "google",
		Medium:        models.MediumCPC,
		Campaign:      "spring_sale",
		Keyword:       "football api",
		KeywordSource: models.KeywordPaid,
		Referrer:      "https://www.google.com/",
		LandingPage:   "https://sportstreamhd.com/contact?gclid=abc",
		GCLID:         "abc",
		Device:        models.DeviceInfo{DeviceClass: models.DeviceDesktop, Browser: "Chrome", OS: "Windows", PrimaryLanguage: "unknown"},
	}
	msg, err := testFormatter().Format(&models.SimpleSubmission{Email: "a@b.co", UserSource: snap}, "10.0.0.1")
	require.NoError(t, err)

	assert.Contains(t, msg.Text, "💰 付费广告 - google")
	assert.Contains(t, msg.Text, "🎯 付费关键词: football api")
	assert.Contains(t, msg.Text, "📢 广告系列: spring_sale")
	assert.Contains(t, msg.Text, "🖥️ desktop - Chrome/Windows")
	assert.Contains(t, msg.Text, "🔗 来源页面: https://www.google.com/")
	assert.Contains(t, msg.Text, "📍 着陆页面: https://sportstreamhd.com/contact?gclid=abc")
	assert.Contains(t, msg.Text, "🆔 Google点击ID: abc")
	assert.Contains(t, msg.Text, "🏢 内网地址")
	assert.NotContains(t, msg.Text, "浏览器语言")
	assert.NotContains(t, msg.Text, "Facebook点击ID")
}

func TestDeviceLineFlagsBots(t *testing.T) {
	human := models.DeviceInfo{DeviceClass: models.DeviceMobile, Browser: "Safari", OS: "iOS"}
	assert.Equal(t, "📱 mobile - Safari/iOS", DeviceLine(human))

	bot := attribution.DetectDevice("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", nil)
	assert.True(t, strings.HasSuffix(DeviceLine(bot), "(🤖 疑似爬虫)"))
	assert.Equal(t, "🖥️ desktop - unknown/unknown", DeviceLine(models.DeviceInfo{}))
}

func TestChannelLine(t *testing.T) {
	assert.Equal(t, "🎯 直接访问", ChannelLine(&models.AttributionSnapshot{Source: "direct", Medium: "direct"}))
	assert.Equal(t, "🔗 网站引荐 - tech_community", ChannelLine(&models.AttributionSnapshot{Source: "tech_community", Medium: "referral"}))
	assert.Equal(t, "", ChannelLine(&models.AttributionSnapshot{Source: "unknown", Medium: "referral"}))
	assert.Equal(t, "", ChannelLine(nil))
	assert.Equal(t, "💰 付费广告 - google", ChannelLine(&models.AttributionSnapshot{Source: "google", Medium: models.MediumCPC}))
}

func TestFormatWithoutAttributionHasIPLine(t *testing.T) {
	msg, err := testFormatter().Format(&models.SimpleSubmission{Email: "a@b.co"}, "unknown")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "### 📊 访客来源\n🏠 本地开发环境")
	assert.False(t, strings.Contains(msg.Text, "付费广告"))
}

func TestFormatNilSubmission(t *testing.T) {
	_, err := testFormatter().Format(nil, "")
	assert.Error(t, err)
}
