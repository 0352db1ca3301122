package tax

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// jurisdiction pairs a short state/UT code with its full name, both already folded.
type jurisdiction struct {
	abbr string
	name string
}

// jurisdictions is the fixed abbreviation table used for place-of-supply matching.
// Several codes may point at the same state (legacy and current GST codes).
var jurisdictions = []jurisdiction{
	{"an", "andaman and nicobar islands"},
	{"ap", "andhra pradesh"},
	{"ar", "arunachal pradesh"},
	{"as", "assam"},
	{"br", "bihar"},
	{"ch", "chandigarh"},
	{"cg", "chhattisgarh"},
	{"ct", "chhattisgarh"},
	{"dn", "dadra and nagar haveli"},
	{"dd", "daman and diu"},
	{"dl", "delhi"},
	{"ga", "goa"},
	{"gj", "gujarat"},
	{"hr", "haryana"},
	{"hp", "himachal pradesh"},
	{"jk", "jammu and kashmir"},
	{"jh", "jharkhand"},
	{"ka", "karnataka"},
	{"kl", "kerala"},
	{"la", "ladakh"},
	{"ld", "lakshadweep"},
	{"mp", "madhya pradesh"},
	{"mh", "maharashtra"},
	{"mn", "manipur"},
	{"ml", "meghalaya"},
	{"mz", "mizoram"},
	{"nl", "nagaland"},
	{"od", "odisha"},
	{"or", "odisha"},
	{"py", "puducherry"},
	{"pb", "punjab"},
	{"rj", "rajasthan"},
	{"sk", "sikkim"},
	{"tn", "tamil nadu"},
	{"tg", "telangana"},
	{"ts", "telangana"},
	{"tr", "tripura"},
	{"up", "uttar pradesh"},
	{"uk", "uttarakhand"},
	{"ut", "uttarakhand"},
	{"wb", "west bengal"},
}

var abbrToName = func() map[string]string {
	m := make(map[string]string, len(jurisdictions))
	for _, j := range jurisdictions {
		m[j.abbr] = j.name
	}
	return m
}()

// leadingCode matches "gj", "gj (24)", "gj(24)" or "gj 24".
var leadingCode = regexp.MustCompile(`^([a-z]{2})(?:[\s(]|$)`)

func normalize(s string) string {
	// cases.Caser is stateful, build one per call.
	return cases.Fold().String(strings.TrimSpace(s))
}

// IsSameJurisdiction reports whether place (free text: full name, code, or
// "CODE (nn)") names the same state as reference. It is a best-effort
// heuristic: an ambiguous string that cannot be matched is treated as a
// different jurisdiction, which selects the stricter IGST path.
func IsSameJurisdiction(place, reference string) bool {
	p := normalize(place)
	r := normalize(reference)
	if p == "" || r == "" {
		return false
	}

	if strings.Contains(p, r) || strings.Contains(r, p) {
		return true
	}

	if m := leadingCode.FindStringSubmatch(p); m != nil {
		if name, ok := abbrToName[m[1]]; ok && strings.Contains(r, name) {
			return true
		}
	}

	for _, j := range jurisdictions {
		if strings.Contains(p, j.abbr) && strings.Contains(r, j.name) {
			return true
		}
	}
	return false
}

// IsInterJurisdiction is the negation of IsSameJurisdiction
func IsInterJurisdiction(place, reference string) bool {
	return !IsSameJurisdiction(place, reference)
}
