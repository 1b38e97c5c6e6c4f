package scrape

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minNameLen = 2
	maxNameLen = 80

	// Accepted names longer than this are almost always sentences that
	// slipped through, not company names.
	maxAcceptedNameLen = 60

	maxBlurbLen = 240
	minBlurbLen = 10
)

// metadataKeywords mark listing chrome (booth numbers, hall assignments)
// masquerading as names.
var metadataKeywords = []string{"booth", "stand", "hall", "location", "category"}

// navArtifacts are directory UI strings that match the exhibitor selectors.
var navArtifacts = []string{"exhibitor search", "all exhibitors", "search", "filter"}

// marketingPhrases flag sentence fragments extracted as names.
var marketingPhrases = []string{"delivers", "is a", "are a", "provides", "specializes"}

var sentenceSplitRe = regexp.MustCompile(`[.!?]\s+`)

// normalizeName validates and canonicalizes a raw company name.
func normalizeName(raw string) (string, bool) {
	name := strings.Join(strings.Fields(raw), " ")

	runes := utf8.RuneCountInString(name)
	if runes < minNameLen || runes > maxNameLen {
		return "", false
	}

	lower := strings.ToLower(name)
	for _, kw := range metadataKeywords {
		if strings.Contains(lower, kw) {
			return "", false
		}
	}

	// Long strings ending in sentence punctuation are prose, not names.
	if runes > 30 && strings.ContainsAny(name[len(name)-1:], ".!?") {
		return "", false
	}

	// Shouting blocks of that length are headers or legal boilerplate.
	if runes > 50 && name == strings.ToUpper(name) && name != strings.ToLower(name) {
		return "", false
	}

	return name, true
}

// splitNameAndBlurb separates a text blob into a company name and an
// optional description. Returns an empty name when no valid name is found.
func splitNameAndBlurb(text string) (string, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}

	// Card layouts: first line is the name, the rest describes it.
	if strings.Contains(text, "\n") {
		lines := nonEmptyLines(text)
		if len(lines) > 0 {
			if name, ok := normalizeName(lines[0]); ok {
				blurb := strings.Join(lines[1:], " ")
				if utf8.RuneCountInString(blurb) <= minBlurbLen {
					blurb = ""
				}
				return name, blurb
			}
		}
	}

	flat := strings.Join(strings.Fields(text), " ")

	// Prose blobs: the first sentence is often "Acme Corp. Maker of ...".
	if parts := sentenceSplitRe.Split(flat, 2); len(parts) == 2 {
		if utf8.RuneCountInString(parts[0]) < maxAcceptedNameLen {
			if name, ok := normalizeName(parts[0]); ok {
				return name, strings.TrimSpace(parts[1])
			}
		}
	}

	// Overlong single chunk: cut a name off the front at a word boundary.
	if utf8.RuneCountInString(flat) > maxNameLen {
		head := string([]rune(flat)[:maxAcceptedNameLen])
		if cut := strings.LastIndex(head, " "); cut > 20 {
			if name, ok := normalizeName(head[:cut]); ok {
				return name, strings.TrimSpace(flat[cut:])
			}
		}
		return "", ""
	}

	if name, ok := normalizeName(flat); ok {
		return name, ""
	}
	return "", ""
}

// acceptName applies the listing-level drops: navigation artifacts,
// overlong names, and marketing copy shaped like a name.
func acceptName(name string) bool {
	if utf8.RuneCountInString(name) > maxAcceptedNameLen {
		return false
	}
	lower := strings.ToLower(name)
	for _, skip := range navArtifacts {
		if strings.Contains(lower, skip) {
			return false
		}
	}
	for _, phrase := range marketingPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

// capBlurb trims and bounds a description.
func capBlurb(blurb string) string {
	blurb = strings.TrimSpace(blurb)
	runes := []rune(blurb)
	if len(runes) > maxBlurbLen {
		return string(runes[:maxBlurbLen-3]) + "..."
	}
	return blurb
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
