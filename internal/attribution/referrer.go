package attribution

import (
	"net/url"
	"strings"

	"github.com/patrickwarner/leadrelay/internal/models"
)

// genericKeywordParams is tried in order for engines without a dedicated
// parameter list.
var genericKeywordParams = []string{"q", "query", "search", "keyword", "wd", "word", "kw"}

// searchRule maps referrer hosts to a search engine name. Rules are evaluated
// in order and the first match wins.
type searchRule struct {
	engine  string
	hosts   []string
	exclude []string
	params  []string
}

func (r searchRule) matches(host string) bool {
	for _, ex := range r.exclude {
		if strings.Contains(host, ex) {
			return false
		}
	}
	for _, h := range r.hosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// soso.com must be tested before so.com, which it contains.
var searchRules = []searchRule{
	{engine: "baidu", hosts: []string{"baidu.com"}, exclude: []string{"tieba.baidu.com"}, params: []string{"wd", "word", "kw"}},
	{engine: "google", hosts: []string{"google."}, params: []string{"q"}},
	{engine: "bing", hosts: []string{"bing.com"}, params: []string{"q"}},
	{engine: "sogou", hosts: []string{"sogou.com"}, params: []string{"query", "keyword"}},
	{engine: "soso", hosts: []string{"soso.com"}, params: []string{"w"}},
	{engine: "360", hosts: []string{"so.com", "360.cn"}, params: []string{"q"}},
	{engine: "shenma", hosts: []string{"sm.cn"}, params: []string{"q"}},
	{engine: "yahoo", hosts: []string{"yahoo.com"}, params: genericKeywordParams},
	{engine: "yandex", hosts: []string{"yandex."}, params: genericKeywordParams},
	{engine: "duckduckgo", hosts: []string{"duckduckgo.com"}, params: genericKeywordParams},
	{engine: "ask", hosts: []string{"ask.com"}, params: genericKeywordParams},
}

// Referral categories.
const (
	CategorySocial        = "social"
	CategoryTechCommunity = "tech_community"
	CategoryNewsMedia     = "news_media"
	CategoryForum         = "forum"
)

type categoryRule struct {
	category string
	hosts    []string
}

var categoryRules = []categoryRule{
	{CategorySocial, []string{"facebook.com", "twitter.com", "linkedin.com", "instagram.com", "weibo.com", "zhihu.com", "wechat.com", "qq.com"}},
	{CategoryTechCommunity, []string{"github.com", "stackoverflow.com", "reddit.com", "medium.com", "dev.to", "csdn.net", "cnblogs.com", "segmentfault.com", "v2ex.com"}},
	{CategoryNewsMedia, []string{"36kr.com", "ithome.com", "techcrunch.com", "producthunt.com", "hackernews.com", "infoq.com"}},
	{CategoryForum, []string{"tieba.baidu.com", "douban.com", "jianshu.com"}},
}

// ReferrerInfo is the outcome of classifying a referrer URL.
type ReferrerInfo struct {
	Source  string
	Medium  string
	Keyword string
}

// FromSearch reports whether the referrer was a search engine.
func (r ReferrerInfo) FromSearch() bool {
	return r.Medium == models.MediumOrganic
}

// ClassifyReferrer classifies a raw referrer URL. It never fails: malformed
// input yields unknown/referral.
func ClassifyReferrer(referrer string) ReferrerInfo {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ReferrerInfo{Source: models.SourceDirect, Medium: models.MediumDirect}
	}

	u, err := url.Parse(referrer)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return ReferrerInfo{Source: models.SourceUnknown, Medium: models.MediumReferral}
	}
	host := strings.ToLower(u.Hostname())

	for _, rule := range searchRules {
		if !rule.matches(host) {
			continue
		}
		info := ReferrerInfo{Source: rule.engine, Medium: models.MediumOrganic}
		q, _ := url.ParseQuery(u.RawQuery)
		for _, p := range rule.params {
			if v := q.Get(p); v != "" {
				info.Keyword = decodeKeyword(v)
				break
			}
		}
		return info
	}

	return ReferrerInfo{Source: categorize(host), Medium: models.MediumReferral}
}

// IsSearchEngine reports whether host belongs to a known search engine.
func IsSearchEngine(host string) bool {
	host = strings.ToLower(host)
	for _, rule := range searchRules {
		if rule.matches(host) {
			return true
		}
	}
	return false
}

func categorize(host string) string {
	for _, rule := range categoryRules {
		for _, h := range rule.hosts {
			if strings.Contains(host, h) {
				return rule.category
			}
		}
	}
	return models.SourceReferral
}
