package entities

import (
	"regexp"
	"strings"
)

// Transcription is the text recognized from an audio clip
type Transcription struct {
	Text                string                   `json:"text"`
	LanguageCode        string                   `json:"language_code"`
	LanguageProbability float64                  `json:"language_probability"`
	Words               []map[string]interface{} `json:"words,omitempty"`
}

// ExtractedInfo holds the lead details pulled out of a call transcript
type ExtractedInfo struct {
	Budget      string   `json:"budget"`
	Location    string   `json:"location"`
	MoveInDate  string   `json:"move_in_date"`
	KeyConcerns []string `json:"key_concerns"`
}

const notSpecified = "Not specified"

var (
	budgetPattern = regexp.MustCompile(`(?i)(?:£|around|about)?\s*(\d+)\s*(?:per week|week|pw|/week)`)

	// order matters, the first hit wins
	knownLocations = []string{"manchester", "london", "birmingham", "fallowfield", "city centre", "campus"}
)

// ExtractKeyInformation scans a transcript for budget, location, move-in date
// and the concerns raised by the caller
func ExtractKeyInformation(transcript string) ExtractedInfo {
	text := strings.ToLower(transcript)

	info := ExtractedInfo{
		Budget:     notSpecified,
		Location:   notSpecified,
		MoveInDate: notSpecified,
	}

	if m := budgetPattern.FindStringSubmatch(text); m != nil {
		info.Budget = "£" + m[1] + "/week"
	}

	for _, loc := range knownLocations {
		if strings.Contains(text, loc) {
			info.Location = strings.ToUpper(loc[:1]) + loc[1:] + " area"
			break
		}
	}

	switch {
	case strings.Contains(text, "september"):
		info.MoveInDate = "September"
	case strings.Contains(text, "move in"):
		info.MoveInDate = "ASAP"
	}

	concerns := make([]string, 0, 3)
	if strings.Contains(text, "safety") || strings.Contains(text, "security") {
		concerns = append(concerns, "Safety/security")
	}
	if strings.Contains(text, "bills") {
		concerns = append(concerns, "Bills included")
	}
	if strings.Contains(text, "transport") || strings.Contains(text, "bus") || strings.Contains(text, "tram") {
		concerns = append(concerns, "Transport links")
	}
	if len(concerns) == 0 {
		concerns = append(concerns, "General inquiry")
	}
	info.KeyConcerns = concerns

	return info
}
