package config

// DefaultCatalog returns the compiled-in keyword tables. Deployments
// normally override these via CATALOG_PATH; the defaults keep the service
// usable when the file is absent.
func DefaultCatalog() Catalog {
	return Catalog{
		Properties: map[string]Property{
			"harborview": {
				Name:        "Harborview Hotel",
				Phone:       "+1-555-0142",
				LocationURL: "https://maps.example.com/harborview",
				Aliases:     []string{"harborview", "harbor view", "harbourview"},
			},
			"grandmarina": {
				Name:        "Grand Marina Resort",
				Phone:       "+1-555-0177",
				LocationURL: "https://maps.example.com/grandmarina",
				Aliases:     []string{"grand marina", "grandmarina", "marina resort"},
			},
			"alpinelodge": {
				Name:        "Alpine Lodge",
				Phone:       "+1-555-0198",
				LocationURL: "https://maps.example.com/alpinelodge",
				Aliases:     []string{"alpine lodge", "alpinelodge", "the lodge"},
			},
			"citycentral": {
				Name:        "City Central Hotel",
				Phone:       "+1-555-0123",
				LocationURL: "https://maps.example.com/citycentral",
				Aliases:     []string{"city central", "citycentral", "central hotel"},
			},
		},
		Categories: []CategoryKeywords{
			{Category: "breakfast", Keywords: []string{"breakfast", "morning meal", "buffet", "brunch", "continental"}},
			{Category: "dining", Keywords: []string{"restaurant", "dining", "dinner", "lunch", "menu", "bar", "lounge", "cafe", "room service"}},
			{Category: "pool", Keywords: []string{"pool", "swimming", "swim", "jacuzzi", "hot tub"}},
			{Category: "fitness", Keywords: []string{"gym", "fitness", "workout", "exercise", "treadmill"}},
			{Category: "spa", Keywords: []string{"spa", "sauna", "massage", "treatment", "wellness"}},
			{Category: "parking", Keywords: []string{"parking", "park", "valet", "garage", "ev charging"}},
			{Category: "checkin", Keywords: []string{"check-in", "check in", "checkin", "check-out", "check out", "checkout", "early check", "late check"}},
			{Category: "rooms", Keywords: []string{"room", "suite", "bed", "amenities", "minibar", "wifi", "wi-fi", "view", "smoking"}},
			{Category: "pets", Keywords: []string{"pet", "dog", "cat", "animal"}},
			{Category: "transit", Keywords: []string{"airport", "shuttle", "taxi", "subway", "bus", "directions", "how to get", "transportation", "transfer"}},
			{Category: "booking", Keywords: []string{"reservation", "reserve", "book", "booking", "cancel", "cancellation", "refund", "deposit"}},
			{Category: "contact", Keywords: []string{"phone", "call", "contact", "front desk", "concierge desk", "email"}},
		},
		Topics: []TopicKeywords{
			{Topic: "breakfast", Keywords: []string{"breakfast", "buffet", "brunch"}},
			{Topic: "dining", Keywords: []string{"restaurant", "dining", "dinner", "menu", "bar"}},
			{Topic: "pool", Keywords: []string{"pool", "swimming", "jacuzzi"}},
			{Topic: "spa", Keywords: []string{"spa", "sauna", "massage"}},
			{Topic: "fitness", Keywords: []string{"gym", "fitness"}},
			{Topic: "parking", Keywords: []string{"parking", "valet"}},
			{Topic: "checkin", Keywords: []string{"check-in", "check in", "checkout", "check-out"}},
			{Topic: "pets", Keywords: []string{"pet", "dog", "cat"}},
			{Topic: "transit", Keywords: []string{"airport", "shuttle", "directions"}},
			{Topic: "booking", Keywords: []string{"reservation", "booking", "cancel"}},
			{Topic: "rooms", Keywords: []string{"room", "suite", "wifi"}},
		},
		Synonyms: map[string][]string{
			"breakfast": {"morning buffet"},
			"gym":       {"fitness center"},
			"pool":      {"swimming pool"},
			"parking":   {"car park"},
			"shuttle":   {"airport transfer"},
			"check-in":  {"arrival"},
			"check-out": {"departure"},
		},
		SpecificTargets: []string{
			"breakfast", "pool", "gym", "fitness", "spa", "sauna", "parking",
			"shuttle", "airport", "check-in", "check in", "checkout",
			"check-out", "wifi", "wi-fi", "room service", "front desk",
			"valet", "minibar", "jacuzzi",
		},
		ContextClarifications: []ContextClarification{
			{
				Context:  "pet",
				Keywords: []string{"pet", "dog", "cat"},
				DirectTriggers: []string{
					"allowed", "allow", "policy", "fee", "charge",
					"stay with", "permitted", "pet-friendly",
				},
				Question: "Are you asking about our pet policy, or about facilities for guests with pets?",
				Options:  []string{"Pet policy and fees", "Pet-friendly rooms", "Nearby pet services"},
			},
			{
				Context:  "child",
				Keywords: []string{"child", "kids", "children", "baby", "toddler"},
				DirectTriggers: []string{
					"free", "fee", "charge", "age", "extra bed", "crib",
					"allowed", "policy", "menu",
				},
				Question: "What would you like to know for children?",
				Options:  []string{"Child rates and policies", "Kids facilities", "Cribs and extra beds"},
			},
		},
		AmbiguousPatterns: []AmbiguousPattern{
			{
				Name:     "bare_hours",
				Keywords: []string{"hours", "open", "close", "when", "what time"},
				Excludes: []string{
					"breakfast", "pool", "gym", "fitness", "spa", "restaurant",
					"bar", "parking", "check", "front desk", "shuttle", "sauna",
				},
				Question: "Which facility's hours are you asking about?",
				Options:  []string{"Breakfast", "Pool", "Fitness center", "Spa", "Restaurant"},
			},
			{
				Name:     "bare_price",
				Keywords: []string{"price", "cost", "how much", "fee", "rate"},
				Excludes: []string{
					"breakfast", "parking", "spa", "room", "shuttle", "pet",
					"child", "cancel", "deposit", "massage",
				},
				Question: "Which price would you like to know?",
				Options:  []string{"Room rates", "Breakfast", "Parking", "Spa treatments"},
			},
			{
				Name:     "bare_location",
				Keywords: []string{"where", "location", "floor", "located"},
				Excludes: []string{
					"breakfast", "pool", "gym", "spa", "restaurant", "parking",
					"front desk", "hotel", "sauna", "bar",
				},
				Question: "Which facility are you looking for?",
				Options:  []string{"Restaurant", "Pool", "Fitness center", "Spa", "Parking"},
			},
		},
		Facilities: []FacilityEntry{
			{Alias: "the anchor", Facility: "The Anchor Grill", PropertyID: "harborview"},
			{Alias: "anchor grill", Facility: "The Anchor Grill", PropertyID: "harborview"},
			{Alias: "azure", Facility: "Azure Rooftop Bar", PropertyID: "grandmarina"},
			{Alias: "azure rooftop", Facility: "Azure Rooftop Bar", PropertyID: "grandmarina"},
			{Alias: "timberline", Facility: "Timberline Restaurant", PropertyID: "alpinelodge"},
			{Alias: "brasserie central", Facility: "Brasserie Central", PropertyID: "citycentral"},
			{Alias: "the brasserie", Facility: "Brasserie Central", PropertyID: "citycentral"},
		},
		Forbidden: ForbiddenRules{
			PersonalInfo: []string{
				"passport number", "credit card number", "card number", "cvv",
				"social security", "guest list", "who is staying", "room number of",
			},
			Payment: []string{
				"pay here", "payment link", "wire transfer", "send money",
				"bank account", "process my payment",
			},
		},
		ForbiddenPhrases: []string{
			"as an ai", "i cannot access", "based on the provided context",
			"according to the documents", "i don't have real-time",
		},
		KnownNames: []string{
			"Harborview Hotel", "Grand Marina Resort", "Alpine Lodge",
			"City Central Hotel", "The Anchor Grill", "Azure Rooftop Bar",
			"Timberline Restaurant", "Brasserie Central",
		},
		Exclusive: []ExclusiveKeywords{
			{
				Category: "breakfast",
				Own:      []string{"breakfast", "buffet", "continental", "brunch"},
				Foreign:  []string{"dinner", "spa", "massage", "treadmill", "valet"},
			},
			{
				Category: "pool",
				Own:      []string{"pool", "swimming", "jacuzzi", "lap lane"},
				Foreign:  []string{"buffet", "massage", "valet", "treadmill"},
			},
			{
				Category: "fitness",
				Own:      []string{"gym", "fitness", "treadmill", "weights"},
				Foreign:  []string{"buffet", "jacuzzi", "massage", "valet"},
			},
			{
				Category: "spa",
				Own:      []string{"spa", "sauna", "massage", "treatment"},
				Foreign:  []string{"buffet", "treadmill", "valet", "lap lane"},
			},
			{
				Category: "parking",
				Own:      []string{"parking", "valet", "garage", "ev charging"},
				Foreign:  []string{"buffet", "massage", "treadmill", "jacuzzi"},
			},
		},
		Templates: Templates{
			Refusal:           "I'm sorry, I couldn't find reliable information about that. Please contact %s for accurate details.",
			TransitRefusal:    "I couldn't verify the exact route details. For directions, please contact %s or check the location page: %s",
			PersonalInfoBlock: "I can't help with personal or guest account information. Please contact %s directly.",
			PaymentRedirect:   "I can't process payments or payment details. Please use the official booking channel or contact %s.",
			GenerationFailure: "I'm having trouble answering right now. Please try again in a moment or contact %s.",
		},
	}
}
