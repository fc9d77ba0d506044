package pitch

import "strings"

var (
	anglePlaylist    = "New music moment: build a themed playlist around %s and similar artists"
	angleLive        = "Live moment: editorial piece on %s's shows and the culture around them"
	angleRecord      = "Prepare a For The Record pitch on %s's moment"
	angleStyleArtist = "Music and fashion crossover: pair %s's streams with the %s story"
	anglePartnership = "Explore a brand partnership around the collaboration"
	angleMerch       = "Tour merch story: coordinate editorial on the drop"
	angleCreator     = "Identify youth creators for a UGC playlist campaign"
	angleSpotlight   = "Prepare an African designer spotlight for social channels"
)

var (
	stepArtistTeam   = "Reach out to %s's team or label for comment"
	stepStreamCheck  = "Check internal streaming data before committing to a claim"
	stepArtistRel    = "Coordinate with artist relations before any outreach"
	stepPartnerships = "Share with the brand partnerships team"
	stepCreators     = "Identify relevant creator partnerships"
	stepMerchBrief   = "Prepare a brief for a potential merch collaboration"
)

const (
	riskHighVisibility = "High visibility moment: review all content before posting"
	riskPolitical      = "Political sensitivity: route through legal and policy review"
	riskAmbiguous      = "Ambiguous search term: verify this is actually the artist"
	riskStale          = "Data may be outdated: verify current relevance before acting"
	riskCompetitor     = "Competitor context: avoid direct comparisons"
	riskBrandSafety    = "Review the source for brand safety before sharing"
)

var tagDescriptions = map[string]string{
	"artist_collab":    "Artist collaboration angle",
	"tour_merch":       "Tour or merch opportunity",
	"youth_culture":    "Youth culture relevance",
	"music_fashion":    "Music and fashion crossover",
	"streetwear":       "Streetwear and sneaker culture",
	"african_designer": "African designer spotlight",
}

var politicalTerms = []string{"election", "protest", "government", "president", "minister", "politic", "parliament", "unrest"}

var competitorTerms = []string{"apple music", "boomplay", "audiomack", "youtube music", "deezer", "competitor"}

func containsAny(text string, terms []string) bool {
	text = strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
