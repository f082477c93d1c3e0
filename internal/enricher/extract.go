package enricher

import (
	"regexp"
	"strconv"
	"strings"
)

// Extraction patterns for free-text mining. Each captures one number near
// its keyword; plausibility filtering rejects the false positives.
var (
	reAcceptanceRate = regexp.MustCompile(`(?i)(?:acceptance|admission)\s+rate\D{0,40}?(\d{1,3}(?:\.\d+)?)\s*(?:%|percent)`)
	rePercentFirst   = regexp.MustCompile(`(?i)(\d{1,3}(?:\.\d+)?)\s*(?:%|percent)\s+(?:acceptance|admission)\s+rate`)
	reTuition        = regexp.MustCompile(`(?i)tuition\D{0,60}?\$\s*(\d{1,3}(?:,\d{3})*(?:\.\d+)?)`)
	reEnrollment     = regexp.MustCompile(`(?i)(?:enrollment|enrolled|student body|total students)\D{0,40}?(\d{1,3}(?:,\d{3})+|\d{3,7})`)
	reEnrollStudents = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+|\d{3,7})\s+(?:total\s+)?students`)
	reGradRate       = regexp.MustCompile(`(?i)graduation\s+rate\D{0,40}?(\d{1,3}(?:\.\d+)?)\s*(?:%|percent)`)
	reLocatedIn      = regexp.MustCompile(`(?i)(?:located|based)\s+in\s+([A-Z][A-Za-z .'-]+?),\s*([A-Z][A-Za-z .'-]+?)(?:[,.]|\s+(?:in|near|and)\b)`)

	rePublic  = regexp.MustCompile(`(?i)\bpublic\s+(?:research\s+)?(?:university|college|institution)\b`)
	rePrivate = regexp.MustCompile(`(?i)\bprivate\s+(?:research\s+)?(?:university|college|institution)\b`)

	reTags       = regexp.MustCompile(`(?s)<(?:script|style)[^>]*>.*?</(?:script|style)>|<[^>]+>`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// htmlToText strips tags and collapses whitespace so the regex miners see
// running text.
func htmlToText(html string) string {
	text := reTags.ReplaceAllString(html, " ")
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// extractAcceptanceRate finds an acceptance-rate percentage in text.
func extractAcceptanceRate(text string) (float64, bool) {
	for _, re := range []*regexp.Regexp{reAcceptanceRate, rePercentFirst} {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := parseFloat(m[1]); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// extractTuition finds a dollar tuition figure in text.
func extractTuition(text string) (float64, bool) {
	if m := reTuition.FindStringSubmatch(text); m != nil {
		return parseFloat(m[1])
	}
	return 0, false
}

// extractEnrollment finds a student-count figure in text.
func extractEnrollment(text string) (int64, bool) {
	for _, re := range []*regexp.Regexp{reEnrollment, reEnrollStudents} {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := parseInt(m[1]); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// extractGraduationRate finds a graduation-rate percentage in text.
func extractGraduationRate(text string) (float64, bool) {
	if m := reGradRate.FindStringSubmatch(text); m != nil {
		return parseFloat(m[1])
	}
	return 0, false
}

// extractLocation finds a "located in City, State" phrase in text.
func extractLocation(text string) (city, state string, ok bool) {
	if m := reLocatedIn.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
	}
	return "", "", false
}

// extractInstitutionType classifies public vs private from narrative text.
func extractInstitutionType(text string) (string, bool) {
	// Check private first: "private" phrasing is the more specific claim and
	// many pages mention "public" incidentally.
	if rePrivate.MatchString(text) {
		return "private", true
	}
	if rePublic.MatchString(text) {
		return "public", true
	}
	return "", false
}

// truncateDescription cuts a narrative to at most n runes, breaking at a
// word boundary.
func truncateDescription(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	cut := string(runes[:n])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
