package queryids

import (
	"regexp"
)

var queryIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validQueryID(id string) bool {
	return queryIDRe.MatchString(id)
}

// Discovered is one operation found in a bundle.
type Discovered struct {
	QueryID string
	Bundle  string
}

// maxFieldGap bounds the text allowed between operationName and queryId in
// the loose patterns.
const maxFieldGap = 4000

// opMatch is one (operationName, queryId) candidate in bundle order.
type opMatch struct {
	name, id string
}

// matcher yields candidates from bundle text.
type matcher func(text string) []opMatch

var (
	exportsIDFirstRe   = regexp.MustCompile(`e\.exports=\{queryId\s*:\s*["']([^"']+)["']\s*,\s*operationName\s*:\s*["']([^"']+)["']`)
	exportsNameFirstRe = regexp.MustCompile(`e\.exports=\{operationName\s*:\s*["']([^"']+)["']\s*,\s*queryId\s*:\s*["']([^"']+)["']`)
	looseNameRe        = regexp.MustCompile(`operationName\s*[:=]\s*["']([^"']+)["']`)
	looseIDRe          = regexp.MustCompile(`queryId\s*[:=]\s*["']([^"']+)["']`)
)

// extractPatterns are tried in priority order; earlier patterns win ties.
var extractPatterns = []matcher{
	submatches(exportsIDFirstRe, 2, 1),
	submatches(exportsNameFirstRe, 1, 2),
	gapPair(looseNameRe, looseIDRe, false),
	gapPair(looseIDRe, looseNameRe, true),
}

func submatches(re *regexp.Regexp, nameGroup, idGroup int) matcher {
	return func(text string) []opMatch {
		var out []opMatch
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, opMatch{name: m[nameGroup], id: m[idGroup]})
		}
		return out
	}
}

// gapPair matches lead followed by trail with at most maxFieldGap bytes in
// between. RE2 caps counted repetition at 1000, so the gap is enforced here.
func gapPair(lead, trail *regexp.Regexp, leadIsID bool) matcher {
	return func(text string) []opMatch {
		var out []opMatch
		pos := 0
		for pos < len(text) {
			loc := lead.FindStringSubmatchIndex(text[pos:])
			if loc == nil {
				break
			}
			leadStart, leadEnd := pos+loc[0], pos+loc[1]
			leadVal := text[pos+loc[2] : pos+loc[3]]

			end := min(len(text), leadEnd+maxFieldGap+512)
			tloc := trail.FindStringSubmatchIndex(text[leadEnd:end])
			if tloc == nil || tloc[0] > maxFieldGap {
				pos = leadStart + 1
				continue
			}
			trailVal := text[leadEnd+tloc[2] : leadEnd+tloc[3]]
			if leadIsID {
				out = append(out, opMatch{name: trailVal, id: leadVal})
			} else {
				out = append(out, opMatch{name: leadVal, id: trailVal})
			}
			pos = leadEnd + tloc[1]
		}
		return out
	}
}

// extractOperations records targets found in text into discovered. It
// returns true once every target has been discovered.
func extractOperations(text, label string, targets map[string]bool, discovered map[string]Discovered) bool {
	if allFound(targets, discovered) {
		return true
	}
	for _, pattern := range extractPatterns {
		for _, m := range pattern(text) {
			if !targets[m.name] || !validQueryID(m.id) {
				continue
			}
			if _, ok := discovered[m.name]; ok {
				continue
			}
			discovered[m.name] = Discovered{QueryID: m.id, Bundle: label}
			if allFound(targets, discovered) {
				return true
			}
		}
	}
	return false
}

func allFound(targets map[string]bool, discovered map[string]Discovered) bool {
	for name := range targets {
		if _, ok := discovered[name]; !ok {
			return false
		}
	}
	return true
}
