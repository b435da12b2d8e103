// Package resources holds the verified crisis-service directory.
package resources

import "strings"

// DefaultRegion is used when a session never declared a region.
const DefaultRegion = "US"

// Record is the verified crisis contact information for one region.
// The table is immutable after process start and shared across sessions.
type Record struct {
	Region    string `json:"region"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Text      string `json:"text"`
	ChatURL   string `json:"chat_url"`
	Emergency string `json:"emergency"`
}

var records = map[string]Record{
	"US": {
		Region:    "US",
		Name:      "988 Suicide & Crisis Lifeline",
		Phone:     "988",
		Text:      "Text HOME to 741741",
		ChatURL:   "https://988lifeline.org/chat/",
		Emergency: "911",
	},
	"UK": {
		Region:    "UK",
		Name:      "Samaritans",
		Phone:     "116 123",
		Text:      "Text SHOUT to 85258",
		ChatURL:   "https://www.samaritans.org/how-we-can-help/contact-samaritan/",
		Emergency: "999",
	},
	"CA": {
		Region:    "CA",
		Name:      "Canada Suicide Prevention Service",
		Phone:     "1-833-456-4566",
		Text:      "Text 45645",
		ChatURL:   "https://talksuicide.ca/",
		Emergency: "911",
	},
	"AU": {
		Region:    "AU",
		Name:      "Lifeline Australia",
		Phone:     "13 11 14",
		Text:      "Text 0477 13 11 14",
		ChatURL:   "https://www.lifeline.org.au/crisis-chat/",
		Emergency: "000",
	},
	"default": {
		Region:    "default",
		Name:      "International Association for Suicide Prevention",
		Phone:     "Visit iasp.info/resources/Crisis_Centres/",
		Text:      "Contact local emergency services",
		ChatURL:   "https://findahelpline.com",
		Emergency: "Local emergency number",
	},
}

// Lookup resolves a region code to its crisis services. Unknown or empty
// codes resolve to the default record; the lookup never fails.
func Lookup(region string) Record {
	code := strings.ToUpper(strings.TrimSpace(region))
	if rec, ok := records[code]; ok {
		return rec
	}
	return records["default"]
}

// Known reports whether a region code has a dedicated record.
func Known(region string) bool {
	_, ok := records[strings.ToUpper(strings.TrimSpace(region))]
	return ok
}
