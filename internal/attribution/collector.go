// Package attribution derives traffic-source snapshots for site visitors and
// keeps their campaign parameters alive across page navigation.
package attribution

import (
	"time"

	"github.com/patrickwarner/leadrelay/internal/models"
)

// Input carries everything Collect looks at.
type Input struct {
	CurrentURL string
	Referrer   string
	UserAgent  string
	Languages  []string
	// Persisted holds parameters saved by earlier page views. Values on
	// CurrentURL override them key by key.
	Persisted Params
	Now       time.Time
}

// Collect builds an attribution snapshot. It is a pure function of in and
// never fails; unparseable inputs degrade to unknown values.
func Collect(in Input) models.AttributionSnapshot {
	merged := Merge(in.Persisted, ExtractParams(in.CurrentURL))
	ref := ClassifyReferrer(in.Referrer)

	snap := models.AttributionSnapshot{
		Campaign:    merged.Get(ParamCampaign),
		Referrer:    in.Referrer,
		LandingPage: in.CurrentURL,
		Device:      DetectDevice(in.UserAgent, in.Languages),
		GCLID:       merged.Get(ParamGCLID),
		FBCLID:      merged.Get(ParamFBCLID),
	}

	switch {
	case snap.GCLID != "":
		snap.Source, snap.Medium = models.SourceGoogle, models.MediumCPC
	case snap.FBCLID != "":
		snap.Source, snap.Medium = models.SourceFacebook, models.MediumCPC
	case merged.Get(ParamSource) != "":
		snap.Source = merged.Get(ParamSource)
		snap.Medium = merged.Get(ParamMedium)
		if snap.Medium == "" {
			snap.Medium = models.MediumCPC
		}
	default:
		snap.Source, snap.Medium = ref.Source, ref.Medium
	}

	fromSearch := false
	switch {
	case merged.Get(ParamTerm) != "":
		snap.Keyword = decodeKeyword(merged.Get(ParamTerm))
	case keywordFromURL(in.CurrentURL) != "":
		snap.Keyword = keywordFromURL(in.CurrentURL)
	case ref.Keyword != "":
		snap.Keyword = ref.Keyword
		fromSearch = true
	}

	snap.KeywordSource = models.KeywordUnknown
	if snap.Keyword != "" {
		switch {
		case snap.Medium == models.MediumCPC:
			snap.KeywordSource = models.KeywordPaid
		case fromSearch:
			snap.KeywordSource = models.KeywordOrganic
		}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	snap.Timestamp = now.UnixMilli()
	return snap
}
