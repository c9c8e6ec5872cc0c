package relay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/patrickwarner/leadrelay/internal/geoip"
	"github.com/patrickwarner/leadrelay/internal/models"
)

// TimestampLayout renders the inquiry time in lead messages.
const TimestampLayout = "2006/01/02 15:04:05"

// DefaultTimezone is the region the sales team works in.
const DefaultTimezone = "Asia/Shanghai"

// markdown hard line break
const lineBreak = "  \n"

// Message is a formatted lead notification.
type Message struct {
	Title string
	Text  string
}

// Formatter turns submissions into chat messages.
type Formatter struct {
	Catalog  *Catalog
	Geo      *geoip.GeoIP
	Location *time.Location
	SiteName string
	Now      func() time.Time
}

// NewFormatter returns a Formatter rendering times in tz. An unknown zone
// falls back to a fixed UTC+8 offset.
func NewFormatter(catalog *Catalog, geo *geoip.GeoIP, tz, siteName string) *Formatter {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.FixedZone("CST", 8*60*60)
	}
	return &Formatter{Catalog: catalog, Geo: geo, Location: loc, SiteName: siteName, Now: time.Now}
}

// Format builds the message for sub. clientIP is the resolved visitor
// address, shown in the attribution section.
func (f *Formatter) Format(sub models.Submission, clientIP string) (Message, error) {
	if sub == nil {
		return Message{}, errors.New("nil submission")
	}
	b := &messageBuilder{f: f, clientIP: clientIP}
	if err := sub.Accept(b); err != nil {
		return Message{}, err
	}
	return b.msg, nil
}

// messageBuilder renders one submission through the SubmissionVisitor.
type messageBuilder struct {
	f        *Formatter
	clientIP string
	msg      Message
}

type section struct {
	heading string
	lines   []string
}

func (s *section) field(name, value string) {
	s.lines = append(s.lines, fmt.Sprintf("**%s:** %s", name, value))
}

// optional adds the field only when value is non-blank.
func (s *section) optional(name, value string) {
	if strings.TrimSpace(value) != "" {
		s.field(name, value)
	}
}

func (s *section) render(w *strings.Builder) {
	if len(s.lines) == 0 {
		return
	}
	if s.heading != "" {
		w.WriteString("### " + s.heading + "\n")
	}
	w.WriteString(strings.Join(s.lines, lineBreak))
	w.WriteString("\n\n")
}

func (b *messageBuilder) title(kind string) string {
	site := b.f.SiteName
	if site == "" {
		return "🎯 " + kind
	}
	return "🎯 " + kind + " - " + site
}

func (b *messageBuilder) finish(title string, sections []*section, notes []string) {
	var w strings.Builder
	w.WriteString("## " + title + "\n\n")
	for _, s := range sections {
		s.render(&w)
	}
	w.WriteString("---\n\n")
	w.WriteString("**⏰ 咨询时间:** " + b.f.timestamp() + "\n\n")
	for i, n := range notes {
		w.WriteString("> " + n)
		if i < len(notes)-1 {
			w.WriteString(lineBreak)
		}
	}
	b.msg = Message{Title: title, Text: w.String()}
}

func (f *Formatter) timestamp() string {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc).Format(TimestampLayout)
}

func (b *messageBuilder) VisitSimple(s *models.SimpleSubmission) error {
	c := b.f.Catalog

	contact := &section{heading: "📋 联系信息"}
	contact.field("📧 邮箱地址", s.Email)
	contact.field(contactIcon(s.ContactMethod)+" 联系方式", s.ContactMethod)

	business := &section{heading: "💼 业务需求"}
	business.field("⚽ 感兴趣的体育项目", c.SportsText(s.SportsInterests))
	business.field("🔧 使用场景", label(c.UseCases, s.UseCase))
	if s.StreamerType != "" {
		business.field("👥 主播规模", label(c.StreamerTypes, s.StreamerType))
	}
	business.optional("🌐 直播平台", s.PlatformInfo)
	business.optional("📝 详细需求说明", s.Requirements)

	title := b.title("新客户咨询")
	b.finish(title, []*section{contact, business, b.attribution(s.UserSource)}, []string{
		"🚀 **请及时跟进客户需求，建议在4小时内与客户取得联系！**",
		"💡 **提醒：可直接回复邮箱或通过联系方式快速沟通**",
	})
	return nil
}

func (b *messageBuilder) VisitDetailed(s *models.DetailedSubmission) error {
	c := b.f.Catalog

	basic := &section{heading: "📋 基本信息"}
	basic.field("🏢 公司名称", s.CompanyName)
	contact := s.ContactName
	if s.Position != "" {
		contact += " (" + s.Position + ")"
	}
	basic.field("👤 联系人", contact)
	basic.field("📧 邮箱地址", s.Email)
	basic.field("📱 联系电话", s.Phone)

	business := &section{heading: "💼 业务需求"}
	business.field("⚽ 感兴趣的体育项目", c.SportsText(s.SportsInterests))
	business.field("🔧 服务需求", label(c.IntegrationTypes, s.IntegrationType))
	business.field("👥 目标用户群体", s.TargetAudience)
	business.field("👀 并发观看人数", label(c.Viewers, s.ConcurrentViewers))
	business.optional("🌐 现有产品链接", s.ExistingProductURL)

	tech := &section{heading: "⚙️ 技术信息"}
	tech.field("💻 技术栈", s.TechStack)
	needAPI := "❌ 否"
	if s.NeedAPI {
		needAPI = "✅ 是"
	}
	tech.field("🔌 需要API接口", needAPI)
	tech.field("📅 预计上线时间", label(c.Timelines, s.LaunchTimeline))
	tech.optional("📝 特殊需求", s.SpecialRequirements)

	commerce := &section{heading: "💰 商务信息"}
	commerce.field("💳 预算范围", label(c.Budgets, s.BudgetRange))
	commerce.field("🤝 合作模式", label(c.CooperationModels, s.CooperationModel))
	commerce.optional("📋 其他需求", s.OtherRequirements)

	title := b.title("高价值客户咨询")
	b.finish(title, []*section{basic, business, tech, commerce, b.attribution(s.UserSource)}, []string{
		"🚨 **高价值客户！请优先处理，建议在2小时内与客户取得联系！**",
		"💡 **提醒：详细的需求信息，适合进行深度商务沟通**",
	})
	return nil
}

func contactIcon(handle string) string {
	switch {
	case strings.HasPrefix(handle, "@"):
		return "✈️"
	case handle != "" && strings.Trim(handle, "0123456789") == "":
		return "🐧"
	default:
		return "📱"
	}
}

// attribution renders the visitor-source section. The IP line is always
// present; everything else depends on what the snapshot carries.
func (b *messageBuilder) attribution(snap *models.AttributionSnapshot) *section {
	s := &section{heading: "📊 访客来源"}
	if snap != nil {
		if line := ChannelLine(snap); line != "" {
			s.lines = append(s.lines, line)
		}
		if snap.Keyword != "" {
			if snap.KeywordSource == models.KeywordPaid {
				s.lines = append(s.lines, "🎯 付费关键词: "+snap.Keyword)
			} else {
				s.lines = append(s.lines, "🔍 搜索关键词: "+snap.Keyword)
			}
		}
		if snap.Campaign != "" {
			s.lines = append(s.lines, "📢 广告系列: "+snap.Campaign)
		}
		s.lines = append(s.lines, DeviceLine(snap.Device))
		if line := b.languageLine(snap.Device); line != "" {
			s.lines = append(s.lines, line)
		}
		if showReferrer(snap) {
			s.lines = append(s.lines, "🔗 来源页面: "+snap.Referrer)
		}
		if showLandingPage(snap.LandingPage) {
			s.lines = append(s.lines, "📍 着陆页面: "+snap.LandingPage)
		}
		if snap.GCLID != "" {
			s.lines = append(s.lines, "🆔 Google点击ID: "+snap.GCLID)
		}
		if snap.FBCLID != "" {
			s.lines = append(s.lines, "🆔 Facebook点击ID: "+snap.FBCLID)
		}
	}
	ip := b.clientIP
	if ip == "" && snap != nil {
		ip = snap.ClientIP
	}
	s.lines = append(s.lines, FormatIP(ip, b.f.Geo))
	return s
}

// ChannelLine describes the traffic channel. Unknown sources produce no line.
func ChannelLine(snap *models.AttributionSnapshot) string {
	if snap == nil || snap.Source == "" || snap.Source == models.SourceUnknown {
		return ""
	}
	switch {
	case snap.IsPaid():
		return "💰 付费广告 - " + snap.Source
	case snap.Medium == models.MediumOrganic:
		return "🔍 自然搜索 - " + snap.Source
	case snap.Source == models.SourceDirect:
		return "🎯 直接访问"
	default:
		return "🔗 网站引荐 - " + snap.Source
	}
}

// DeviceLine summarizes device class, browser and OS. Crawler user agents
// are flagged.
func DeviceLine(d models.DeviceInfo) string {
	class := d.DeviceClass
	if class == "" {
		class = models.DeviceDesktop
	}
	emoji := "🖥️"
	switch class {
	case models.DeviceMobile:
		emoji = "📱"
	case models.DeviceTablet:
		emoji = "💻"
	}
	line := fmt.Sprintf("%s %s - %s/%s", emoji, class, orUnknown(d.Browser), orUnknown(d.OS))
	if d.IsBot {
		line += " (🤖 疑似爬虫)"
	}
	return line
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func (b *messageBuilder) languageLine(d models.DeviceInfo) string {
	code := d.PrimaryLanguage
	if code == "" || code == "unknown" {
		return ""
	}
	name := b.f.Catalog.Language(code)
	if name == code {
		return "🌐 浏览器语言: " + code
	}
	return fmt.Sprintf("🌐 浏览器语言: %s (%s)", name, code)
}

// showReferrer hides the referrer when it is empty or when it is an organic
// search whose keyword is already shown.
func showReferrer(snap *models.AttributionSnapshot) bool {
	if snap.Referrer == "" {
		return false
	}
	return !(snap.Medium == models.MediumOrganic && snap.KeywordSource == models.KeywordOrganic && snap.Keyword != "")
}

// showLandingPage hides an empty landing page and the bare site root.
func showLandingPage(landing string) bool {
	if landing == "" {
		return false
	}
	u, err := url.Parse(landing)
	if err != nil {
		return true
	}
	return !((u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == "")
}
