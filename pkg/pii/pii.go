package pii

import (
	"regexp"
	"strings"
)

// Scanner replaces every match of Pattern with Mask.
type Scanner struct {
	Name    string
	Pattern *regexp.Regexp
	Mask    string
}

// DefaultScanners cover the personal data a submission carries.
var DefaultScanners = []Scanner{
	{
		Name:    "Email",
		Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		Mask:    "****@****.***",
	},
	{
		Name:    "Phone",
		// International numbers, or at least nine digits. Dates and short ids stay readable.
		Pattern: regexp.MustCompile(`\+\d[\d\- ]{5,}\d|\b\d(?:[\- ]?\d){8,}\b`),
		Mask:    "***-****",
	},
}

// Redactor masks personal data in free text such as server rejection messages.
type Redactor struct {
	Scanners []Scanner
}

func NewRedactor(scanners ...Scanner) *Redactor {
	if len(scanners) == 0 {
		return &Redactor{Scanners: DefaultScanners}
	}
	return &Redactor{Scanners: scanners}
}

func (r *Redactor) Redact(input string) string {
	res := input
	for _, s := range r.Scanners {
		res = s.Pattern.ReplaceAllString(res, s.Mask)
	}
	return res
}

// Discover returns the names of the scanners that match input.
func (r *Redactor) Discover(input string) []string {
	var found []string
	for _, s := range r.Scanners {
		if s.Pattern.MatchString(input) {
			found = append(found, s.Name)
		}
	}
	return found
}

// MaskEmail keeps the first letter of the local part and the domain.
func MaskEmail(s string) string {
	at := strings.LastIndexByte(s, '@')
	if at < 0 || at == len(s)-1 {
		return MaskPartial(s)
	}
	if at > 1 {
		return s[:1] + "****" + s[at:]
	}
	return "*" + s[at:]
}

// MaskPartial keeps the first and last two characters of values longer than four.
func MaskPartial(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > 4 {
		return s[:2] + "****" + s[len(s)-2:]
	}
	return "****"
}
