package value

import "strings"

// Accessibility tag vocabulary used by the French listing sources. Matching is
// case-insensitive.

//nolint:gochecknoglobals
var (
	highAccessTags = map[string]struct{}{
		"digicode":          {},
		"télécommande":      {},
		"électricité":       {},
		"eau":               {},
		"vidéosurveillance": {},
		"accès 24h/24":      {},
	}

	heightTags = map[string]struct{}{
		"hauteur 2m":   {},
		"hauteur 2.5m": {},
	}

	securityTags = map[string]struct{}{
		"gardiennage":       {},
		"vidéosurveillance": {},
		"interphone":        {},
		"digicode":          {},
	}
)

// TagSet is a normalized (lower-cased, deduplicated) view over a listing's
// accessibility tags.
type TagSet map[string]struct{}

func NewTagSet(tags []string) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	return set
}

func (s TagSet) Has(tag string) bool {
	_, ok := s[strings.ToLower(tag)]
	return ok
}

func (s TagSet) CountHighAccess() int { return s.countIn(highAccessTags) }
func (s TagSet) CountSecurity() int   { return s.countIn(securityTags) }
func (s TagSet) HasHeightTag() bool   { return s.countIn(heightTags) > 0 }

func (s TagSet) countIn(vocab map[string]struct{}) int {
	n := 0
	for tag := range s {
		if _, ok := vocab[tag]; ok {
			n++
		}
	}

	return n
}
