package config

// DefaultTopics returns the built-in taxonomy in priority order.
func DefaultTopics() []TopicConfig {
	return []TopicConfig{
		{
			Key:  "music_audio",
			Name: "Music & Audio",
			Keywords: []string{
				"music", "song", "album", "single", "track", "artist", "singer", "rapper",
				"afrobeats", "amapiano", "gqom", "bongo flava", "concert", "festival", "tour",
				"playlist", "stream", "dj", "producer", "grammy", "headies",
			},
			KeywordWeights: map[string]float64{"afrobeats": 2, "amapiano": 2, "album": 1.5},
			Subtopics: []SubtopicConfig{
				{Key: "artists", Keywords: []string{"artist", "singer", "rapper", "musician", "dj"}},
				{Key: "genres", Keywords: []string{"afrobeats", "amapiano", "gqom", "hip hop", "rap", "genre"}},
				{Key: "songs", Keywords: []string{"song", "track", "single", "hit"}},
				{Key: "playlists", Keywords: []string{"playlist", "mix", "compilation"}},
				{Key: "live_events", Keywords: []string{"concert", "festival", "tour", "performance", "live"}},
				{Key: "streaming_moments", Keywords: []string{"stream", "views", "plays", "viral"}},
				{Key: "industry_issues", Keywords: []string{"label", "contract", "royalties", "industry"}},
			},
			RiskBase:   10,
			RiskPhrase: "artist controversy or fan backlash could spill onto platform channels",
		},
		{
			Key:  "culture",
			Name: "Culture",
			Keywords: []string{
				"meme", "viral", "trending", "nollywood", "movie", "film", "series", "football",
				"afcon", "gen z", "youth", "slang", "challenge", "celebrity", "reality show", "bbnaija",
			},
			Subtopics: []SubtopicConfig{
				{Key: "memes", Keywords: []string{"meme", "viral", "trending", "challenge"}},
				{Key: "youth_culture", Keywords: []string{"gen z", "youth", "young"}},
				{Key: "identity", Keywords: []string{"identity", "pride", "community"}},
				{Key: "tv_film", Keywords: []string{"nollywood", "movie", "film", "series", "reality show", "bbnaija"}},
				{Key: "sport", Keywords: []string{"football", "soccer", "afcon", "sport", "player"}},
				{Key: "internet_slang", Keywords: []string{"slang", "lingo"}},
			},
			RiskBase:   15,
			RiskPhrase: "a joke or meme can read as tone-deaf outside its community",
		},
		{
			Key:  "fashion_beauty",
			Name: "Fashion & Beauty",
			Keywords: []string{
				"fashion", "style", "streetwear", "designer", "runway", "fashion week", "sneaker",
				"drop", "collection", "makeup", "beauty", "skincare", "outfit", "merch",
			},
			Subtopics: []SubtopicConfig{
				{Key: "drops", Keywords: []string{"drop", "release", "launch", "collection"}},
				{Key: "designers", Keywords: []string{"designer", "design"}},
				{Key: "runway", Keywords: []string{"runway", "fashion week", "model"}},
				{Key: "streetwear", Keywords: []string{"streetwear", "street style", "sneaker", "merch"}},
				{Key: "beauty_trends", Keywords: []string{"makeup", "beauty", "skincare"}},
			},
			RiskBase:   10,
			RiskPhrase: "cultural appropriation claims can follow a brand-led style moment",
		},
		{
			Key:  "current_affairs",
			Name: "Current Affairs",
			Keywords: []string{
				"election", "vote", "government", "president", "minister", "parliament", "policy",
				"protest", "strike", "economy", "inflation", "fuel", "police", "court", "conflict",
				"war", "security", "crime",
			},
			KeywordWeights: map[string]float64{"election": 2, "protest": 2},
			Subtopics: []SubtopicConfig{
				{Key: "elections", Keywords: []string{"election", "vote", "ballot", "campaign"}},
				{Key: "protests", Keywords: []string{"protest", "demonstration", "march", "strike"}},
				{Key: "conflict", Keywords: []string{"conflict", "war", "violence", "attack"}},
				{Key: "public_safety", Keywords: []string{"safety", "security", "crime", "police"}},
				{Key: "policy", Keywords: []string{"policy", "law", "government", "minister", "parliament"}},
			},
			RiskBase:   40,
			RiskPhrase: "any brand presence can be read as taking a political side",
		},
		{
			Key:  "brand_comms",
			Name: "Brand & Comms",
			Keywords: []string{
				"brand", "sponsor", "sponsorship", "partnership", "campaign", "influencer",
				"creator", "misinformation", "fake", "deepfake", "ai", "trust", "boycott",
			},
			Subtopics: []SubtopicConfig{
				{Key: "trust_safety", Keywords: []string{"trust", "safety"}},
				{Key: "misinformation", Keywords: []string{"fake", "misinformation", "disinformation"}},
				{Key: "creator_economy", Keywords: []string{"creator", "influencer", "monetization"}},
				{Key: "ai_debates", Keywords: []string{"ai", "artificial intelligence", "deepfake"}},
				{Key: "sponsorship", Keywords: []string{"sponsor", "partnership", "brand deal"}},
			},
			RiskBase:   30,
			RiskPhrase: "brand statements get screenshotted and judged out of context",
		},
		{
			Key:  "spotify_specific",
			Name: "Spotify",
			Keywords: []string{
				"spotify", "wrapped", "discover weekly", "apple music", "boomplay", "audiomack",
				"youtube music", "premium", "subscription",
			},
			KeywordWeights: map[string]float64{"spotify": 3, "wrapped": 2},
			Subtopics: []SubtopicConfig{
				{Key: "mentions", Keywords: []string{"spotify"}},
				{Key: "competitors", Keywords: []string{"apple music", "boomplay", "audiomack", "youtube music"}},
				{Key: "features", Keywords: []string{"wrapped", "blend", "discover weekly"}},
				{Key: "app_issues", Keywords: []string{"bug", "crash", "outage", "not working"}},
				{Key: "pricing", Keywords: []string{"price", "premium", "subscription"}},
				{Key: "partnerships", Keywords: []string{"partner", "collab", "deal"}},
			},
			RiskBase:   20,
			RiskPhrase: "direct platform criticism can trend faster than a response is ready",
		},
	}
}

// DefaultSeeds returns the built-in entity seed lists keyed by entity kind.
func DefaultSeeds() map[string][]string {
	return map[string][]string{
		"artist": {
			"Burna Boy", "Wizkid", "Davido", "Tems", "Rema", "Ayra Starr", "Asake", "Tyla",
			"Black Coffee", "Uncle Waffles", "Kabza De Small", "DJ Maphorisa", "Sauti Sol",
			"Diamond Platnumz", "Nviiri", "Bien", "Sarkodie", "Stonebwoy", "Black Sherif",
			"King Promise", "Shatta Wale", "Nasty C", "Focalistic",
		},
		"creator": {"Mr Macaroni", "Taaooma", "Elsa Majimbo", "Crazy Kennar"},
		"brand": {
			"Spotify", "Apple Music", "Boomplay", "Audiomack", "YouTube Music", "Deezer",
			"TikTok", "MTN", "Safaricom", "Nike", "Adidas", "Puma",
		},
		"event": {"Afro Nation", "Detty December", "AFCON", "Headies", "Blankets and Wine", "Nyege Nyege", "Afropunk"},
		"place": {"Lagos", "Abuja", "Nairobi", "Mombasa", "Accra", "Kumasi", "Johannesburg", "Cape Town", "Durban", "Soweto"},
	}
}

// DefaultAdjacencyVocabulary weighs audio-culture terms for spotify adjacency.
func DefaultAdjacencyVocabulary() map[string]float64 {
	return map[string]float64{
		"spotify":       100,
		"apple music":   90,
		"boomplay":      90,
		"audiomack":     90,
		"youtube music": 90,
		"deezer":        90,
		"playlist":      40,
		"afrobeats":     40,
		"amapiano":      40,
		"gqom":          35,
		"album":         35,
		"tour":          35,
		"concert":       35,
		"festival":      30,
		"song":          30,
		"stream":        30,
		"track":         25,
		"music":         25,
		"podcast":       25,
		"listen":        20,
		"dj":            20,
	}
}

// DefaultRiskVocabulary weighs risk terms on the 0-100 scale.
func DefaultRiskVocabulary() map[string]float64 {
	return map[string]float64{
		"riot":        50,
		"war":         50,
		"violence":    50,
		"protest":     45,
		"unrest":      45,
		"attack":      45,
		"shooting":    45,
		"killed":      45,
		"death":       40,
		"terror":      50,
		"boycott":     35,
		"election":    30,
		"scandal":     30,
		"controversy": 30,
		"backlash":    30,
		"ban":         25,
		"lawsuit":     25,
		"police":      25,
		"arrest":      25,
		"strike":      20,
		"religion":    20,
		"tribal":      30,
	}
}

// DefaultMarketWeights returns comms priority weights per market.
func DefaultMarketWeights() map[string]float64 {
	return map[string]float64{
		"NG": 1.5,
		"ZA": 1.5,
		"KE": 1.3,
		"GH": 1.2,
		"TZ": 1.0,
		"UG": 1.0,
		"EG": 1.0,
		"MA": 1.0,
		"CI": 0.9,
		"SN": 0.9,
		"AO": 0.9,
	}
}

// DefaultSourcePriority ranks sources when choosing a merged trend's canonical item.
func DefaultSourcePriority() map[string]int {
	return map[string]int{
		"spotify_internal": 100,
		"google_trends":    90,
		"news_rss":         80,
		"rss":              80,
		"wikipedia":        70,
		"youtube":          60,
		"twitter":          50,
		"tiktok":           50,
		"reddit":           40,
		"file":             30,
		"static":           10,
	}
}
