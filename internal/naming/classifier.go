// Package naming derives the canonical published file name and the catalog
// category from whatever name a document was uploaded with.
package naming

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Lllllllleong/docchannelbot/internal/models"
)

// Prefix is prepended to every canonical name.
const Prefix = "@ISH_REJA_UZ_"

var (
	russianMarkers     = []string{"rus", "klass", "рус", "класс"}
	controlTestMarkers = []string{"bsb", "chsb", "сор", "соч"}
	// Grade tokens are matched after normalization, so "9-", "9_" and "9 "
	// all count. The canonical name keeps the token as "9_".
	gradeMarkers = []string{"5 ", "6 ", "7 ", "8 ", "9 ", "10 ", "11 "}

	// Only the language tokens are stripped from Russian-class names; "klass"
	// stays in the name.
	russianStrip     = regexp.MustCompile(`(?i)rus|рус`)
	controlTestStrip = regexp.MustCompile(`(?i)chsb|bsb|сор|соч`)

	normalizer = strings.NewReplacer("_", " ", "-", " ")
)

// Classification is the classifier's output for one upload.
type Classification struct {
	FileName string
	Category models.Category
}

// Classify computes the canonical file name and category for originalName.
// It accepts any string, including empty and extension-only names.
func Classify(originalName string) Classification {
	base, ext := splitExt(originalName)
	clean := strings.TrimSpace(normalizer.Replace(base))
	lower := strings.ToLower(clean)

	var computed string
	switch {
	case containsAny(lower, russianMarkers):
		computed = "RUS_" + strings.ToUpper(strings.TrimSpace(russianStrip.ReplaceAllString(clean, "")))
	case containsAny(lower, controlTestMarkers):
		computed = "BSB_CHSB_" + strings.ToUpper(strings.TrimSpace(controlTestStrip.ReplaceAllString(clean, "")))
	default:
		computed = strings.ReplaceAll(titleCase(clean), " ", "_")
	}

	fileName := Prefix + computed + strings.ToLower(ext)
	return Classification{
		FileName: fileName,
		Category: categorize(fileName, clean),
	}
}

// categorize applies the marker tiers to the canonical name and the grade
// tier to the normalized base. Both survive re-classification unchanged.
func categorize(canonical, clean string) models.Category {
	lower := strings.ToLower(strings.TrimPrefix(canonical, Prefix))
	switch {
	case clean == "":
		return models.CategoryGeneral
	case containsAny(lower, russianMarkers):
		return models.CategoryRusMaktab
	case containsAny(lower, controlTestMarkers):
		return models.CategoryBSBCHSB
	case containsAny(clean, gradeMarkers):
		return models.CategoryYuqori
	default:
		return models.CategoryBoshlangich
	}
}

// splitExt splits name like Python's os.path.splitext: leading dots belong to
// the base, so ".xlsx" has no extension.
func splitExt(name string) (string, string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 || strings.TrimLeft(name[:i], ".") == "" {
		return name, ""
	}
	return name[:i], name[i:]
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// titleCase upper-cases a letter that follows a non-letter and lower-cases
// the rest, matching str.title() on the names admins upload.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
