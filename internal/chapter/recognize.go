package chapter

import (
	"regexp"
	"strconv"
	"strings"

	"mangawatch/pkg/models"
)

var (
	// number immediately following a "ch." token, e.g. "ch. 4", "ch.12.5", "ch.12a"
	basicNumber = regexp.MustCompile(`ch\. *([0-9]+)(\.[0-9]+)?(\.?[a-z]+)?`)

	// bare number with optional decimal or alphabetic sub-chapter suffix
	bareNumber = regexp.MustCompile(`([0-9]+)(\.[0-9]+)?(\.?[a-z]+)?`)

	// same pattern anchored at the start of the string
	leadingNumber = regexp.MustCompile(`^ *([0-9]+)(\.[0-9]+)?(\.?[a-z]+)?`)

	// volume/version/season tokens that would otherwise be mistaken for a
	// chapter number, e.g. "vol.2", "v3", "season 1"
	unwantedToken = regexp.MustCompile(`\b(?:v|ver|vol|version|volume|season|s)[^a-z]?[0-9]+`)

	// whitespace before a designator, so "chapter extra" becomes one token
	designatorSpace = regexp.MustCompile(`\s+(extra|special|omake)`)
)

// Recognize derives a numeric chapter ordinal from a chapter's display name.
// A number the source already supplied (existing == -2, or > -1) is returned
// unchanged. When nothing in the name parses as a number, existing is
// returned as-is so an unrecognized chapter stays unrecognized.
func Recognize(titleName, chapterName string, existing float64) float64 {
	if existing == models.NumberNonNumeric || existing > models.NumberUnknown {
		return existing
	}

	name := strings.ToLower(chapterName)
	name = strings.ReplaceAll(name, ",", ".")
	name = strings.ReplaceAll(name, "-", ".")
	name = designatorSpace.ReplaceAllString(name, "$1")
	name = unwantedToken.ReplaceAllString(name, "")

	// "ch." anchored number wins outright
	if m := basicNumber.FindStringSubmatch(name); m != nil {
		return composeNumber(m)
	}

	// exactly one bare number anywhere in the name
	if all := bareNumber.FindAllStringSubmatch(name, -1); len(all) == 1 {
		return composeNumber(all[0])
	}

	// strip the series title and retry at the start of what remains
	stripped := strings.TrimSpace(strings.ReplaceAll(name, strings.ToLower(titleName), ""))
	if m := leadingNumber.FindStringSubmatch(stripped); m != nil {
		return composeNumber(m)
	}
	if m := bareNumber.FindStringSubmatch(stripped); m != nil {
		return composeNumber(m)
	}

	return existing
}

// composeNumber turns the three capture groups (integer part, decimal part,
// alphabetic suffix) into a float ordinal. A decimal part takes precedence
// over a suffix; "12a" maps to 12.1, "12 extra" to 12.99.
func composeNumber(m []string) float64 {
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.NumberUnknown
	}
	if m[2] != "" {
		frac, err := strconv.ParseFloat("0"+m[2], 64)
		if err == nil {
			return n + frac
		}
	}
	if m[3] != "" {
		return n + suffixValue(m[3])
	}
	return n
}

func suffixValue(suffix string) float64 {
	suffix = strings.TrimPrefix(suffix, ".")
	switch suffix {
	case "extra":
		return 0.99
	case "omake":
		return 0.98
	case "special":
		return 0.97
	}
	if len(suffix) == 1 && suffix[0] >= 'a' && suffix[0] <= 'z' {
		return float64(suffix[0]-'a'+1) / 10
	}
	return 0
}
