package hlsfetch

import (
	"strings"

	"golang.org/x/text/language"
)

// closeMatchThreshold is the language-distance budget below which two BCP-47
// tags are considered the "same" language for is_original_lang purposes,
// tracking devine's utilities.is_close_match default.
const closeMatchThreshold = 10

// ResolveLanguage implements component D step 3: the first valid, non-"und"
// BCP-47 tag among candidates wins. LanguageUnresolvedError names every
// candidate tried when none resolves.
func ResolveLanguage(candidates ...string) (language.Tag, error) {
	var tried []string
	for _, c := range candidates {
		tried = append(tried, c)
		if c == "" || strings.EqualFold(c, "und") {
			continue
		}
		tag, err := language.Parse(c)
		if err != nil {
			continue
		}
		base, conf := tag.Base()
		if conf == language.No || base.String() == "und" {
			continue
		}
		return tag, nil
	}

	media, fallback := "", ""
	if len(tried) > 0 {
		media = tried[0]
	}
	if len(tried) > 1 {
		fallback = tried[1]
	}
	return language.Und, newLanguageUnresolved(media, fallback)
}

// IsOriginalLanguage implements component D step 4: a track's language is
// the "original" language of the asset when its base language matches the
// fallback/original tag's base language, region divergence aside — the
// Go-idiomatic stand-in for devine's langcodes.tag_distance close-match
// check (closeMatchThreshold documents the budget that check used; base
// equality alone already sits well under it).
func IsOriginalLanguage(trackLang, originalLang language.Tag) bool {
	if trackLang == language.Und || originalLang == language.Und {
		return false
	}

	trackBase, _ := trackLang.Base()
	originalBase, _ := originalLang.Base()
	return trackBase == originalBase
}
