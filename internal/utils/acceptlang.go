package utils

import (
	"sort"
	"strconv"
	"strings"
)

type langWeight struct {
	lang string
	q    float64
}

// DetermineLocale picks a locale from an explicit query value, then from the
// Accept-Language header by q-value, then def. Regional tags such as en-US
// fall back to their base language.
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	sup := make(map[string]bool, len(supported))
	for _, s := range supported {
		sup[strings.ToLower(s)] = true
	}
	match := func(tag string) (string, bool) {
		l := strings.ToLower(strings.TrimSpace(tag))
		if l == "" {
			return "", false
		}
		if sup[l] {
			return l, true
		}
		if base, _, found := strings.Cut(l, "-"); found && sup[base] {
			return base, true
		}
		return "", false
	}

	if l, ok := match(queryLang); ok {
		return l
	}
	var cands []langWeight
	for _, lw := range parseAcceptLanguage(acceptLang) {
		if l, ok := match(lw.lang); ok && lw.q > 0 {
			cands = append(cands, langWeight{lang: l, q: lw.q})
		}
	}
	if len(cands) > 0 {
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].q > cands[j].q })
		return cands[0].lang
	}
	if l, ok := match(def); ok {
		return l
	}
	if len(supported) > 0 {
		return strings.ToLower(supported[0])
	}
	return "en"
}

// parseAcceptLanguage splits "en-US,en;q=0.9,zh;q=0.8" into weighted tags.
// Malformed q-values count as 1.
func parseAcceptLanguage(header string) []langWeight {
	var out []langWeight
	for _, part := range strings.Split(header, ",") {
		tag, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if tag = strings.TrimSpace(tag); tag == "" {
			continue
		}
		q := 1.0
		for _, p := range strings.Split(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
				q = f
			}
		}
		out = append(out, langWeight{lang: tag, q: q})
	}
	return out
}
