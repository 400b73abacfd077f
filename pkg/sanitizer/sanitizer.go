package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

const maxVehicleTagLength = 20

var reShortHour = regexp.MustCompile(`^(\d):([0-5]\d)$`)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func truncateRunes(limit int) Strategy {
	return func(s string) string {
		r := []rune(s)
		if len(r) <= limit {
			return s
		}
		return strings.TrimSpace(string(r[:limit]))
	}
}

func SanitizeText(s string) string {
	return TrimAndNormalize(s)
}

func SanitizeID(s string) string {
	return strings.TrimSpace(s)
}

func SanitizeVehicleTag(tag string) string {
	p := Pipeline{
		TrimAndNormalize,
		strings.ToUpper,
		truncateRunes(maxVehicleTagLength),
	}
	return p.Apply(tag)
}

func SanitizeDate(date string) string {
	return strings.TrimSpace(date)
}

func SanitizeClock(clock string) string {
	clock = strings.TrimSpace(clock)
	return reShortHour.ReplaceAllString(clock, "0$1:$2")
}
