package webhook

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// suffixes WhatsApp appends to a JID's user part; group JIDs (@g.us) are
// left untouched by ToE164 since they never represent a phone number.
var jidSuffixes = []string{"@s.whatsapp.net", "@c.us"}

// ToE164 normalizes a WhatsApp JID or bare number to E.164 (spec §4.F):
// strip the JID suffix, drop whitespace/hyphens, prefix "+" if absent, then
// canonicalize through libphonenumber. Falls back to the manually cleaned
// string if libphonenumber can't parse it — a webhook payload should
// still carry a best-effort number rather than fail outright.
func ToE164(jid string) string {
	if strings.HasSuffix(jid, "@g.us") {
		return jid
	}
	s := jid
	for _, suf := range jidSuffixes {
		s = strings.TrimSuffix(s, suf)
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	if s == "" {
		return s
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}

	parsed, err := phonenumbers.Parse(s, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return s
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}
