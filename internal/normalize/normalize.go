// Package normalize holds the string-normalization primitives the pipeline
// keys on: canonical provider names, address splitting, and email-domain
// classification.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/provwatch/provwatch/internal/models"
)

// corporateSuffixes are trailing corporate-form markers stripped from
// provider names. Each entry includes its leading space so "welco" is
// never mistaken for "wel co".
var corporateSuffixes = []string{
	" llc",
	" llc.",
	" inc",
	" inc.",
	" pllc",
	" pllc.",
	" corp",
	" corp.",
	" corporation",
	" co",
	" co.",
	" company",
}

// Name canonicalizes a raw facility name: lowercase, collapse whitespace,
// and strip trailing corporate-form suffixes until none remains. The
// strip loop runs to a fixed point, so Name(Name(x)) == Name(x).
func Name(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.Join(strings.Fields(name), " ")
	for {
		stripped := false
		for _, suffix := range corporateSuffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
				stripped = true
			}
		}
		if !stripped {
			return name
		}
	}
}

// Address best-effort splits a comma-separated formatted address into
// street, city, state, and postal code. Missing parts come back empty;
// it never fails.
func Address(raw string) (street, city, state, postal string) {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) > 0 {
		street = parts[0]
	}
	if len(parts) > 1 {
		city = parts[1]
	}
	if len(parts) > 2 {
		fields := strings.Fields(parts[2])
		if len(fields) > 0 {
			state = fields[0]
		}
		if len(fields) > 1 {
			postal = fields[1]
		}
	}
	return street, city, state, postal
}

// freeEmailDomains are consumer mail providers. A business fronting a
// free mailbox is weaker corroboration than mail on its own domain.
var freeEmailDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"outlook.com": {},
	"hotmail.com": {},
	"live.com":    {},
	"aol.com":     {},
	"msn.com":     {},
	"icloud.com":  {},
	"proton.me":   {},
}

// EmailDomain returns the registrable domain of an email address's host,
// lowercased ("someone@mail.example.co.uk" -> "example.co.uk"). Returns ""
// when the address has no host.
func EmailDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	host := strings.ToLower(strings.TrimSpace(addr[at+1:]))
	if host == "" {
		return ""
	}
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	return host
}

// ClassifyEmailDomain grades an email address: free consumer provider,
// custom domain, or unknown when the address yields no usable domain.
func ClassifyEmailDomain(addr string) models.EmailDomainType {
	domain := EmailDomain(addr)
	if domain == "" {
		return models.EmailDomainUnknown
	}
	if _, ok := freeEmailDomains[domain]; ok {
		return models.EmailDomainFree
	}
	if strings.Contains(domain, ".") {
		return models.EmailDomainCustom
	}
	return models.EmailDomainUnknown
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// ExtractEmail returns the first email address found in text, or "" when
// there is none.
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// TitleCase capitalizes the first letter of each space-separated word and
// lowercases the rest. ASCII-oriented; used for cohort grouping keys, not
// display.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
