// Package pii detects personally identifiable information in request text.
// It reports only types and counts; raw matches never leave this package.
package pii

import (
	"regexp"
	"strings"
)

// Type names one category of detected PII.
type Type string

const (
	TypeEmail      Type = "email"
	TypeIBAN       Type = "iban"
	TypePhone      Type = "phone"
	TypeIPAddress  Type = "ip_address"
	TypeBSN        Type = "bsn"
	TypeCreditCard Type = "credit_card"
	TypePersonName Type = "person_name"
)

// Result is the metadata-only outcome of a scan.
type Result struct {
	Types  map[Type]int
	Detected bool
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	ibanPattern  = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)
	phonePattern = regexp.MustCompile(`\+?\d{1,3}[\s.-]?\(?\d{2,4}\)?[\s.-]?\d{3,4}[\s.-]?\d{3,4}\b`)
	ipPattern    = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	bsnCandidate = regexp.MustCompile(`\b\d{9}\b`)
	ccCandidate  = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)

	bsnWeights = []int{9, 8, 7, 6, 5, 4, 3, 2, -1}
)

// NameProbe is a pluggable best-effort person-name detector. Failure must
// never block the rest of the scan — callers that wire a real NER model
// should recover from panics internally or simply return false.
type NameProbe func(text string) (count int, ok bool)

// Scan runs every detector over text and returns the aggregated metadata.
// NER (nameProbe) is optional; pass nil to skip person-name detection.
func Scan(text string, nameProbe NameProbe) Result {
	res := Result{Types: make(map[Type]int)}

	addCount(res, TypeEmail, len(emailPattern.FindAllString(text, -1)))
	addCount(res, TypeIBAN, len(ibanPattern.FindAllString(text, -1)))
	addCount(res, TypePhone, countPhones(text))
	addCount(res, TypeIPAddress, len(ipPattern.FindAllString(text, -1)))
	addCount(res, TypeBSN, countValidBSNs(text))
	addCount(res, TypeCreditCard, countValidCreditCards(text))

	if nameProbe != nil {
		if n, ok := safeProbe(nameProbe, text); ok && n > 0 {
			addCount(res, TypePersonName, n)
		}
	}

	res.Detected = len(res.Types) > 0
	return res
}

func addCount(res Result, t Type, n int) {
	if n > 0 {
		res.Types[t] += n
	}
}

// safeProbe recovers from a panicking NER probe so the rest of the scan
// always completes (fail-open).
func safeProbe(probe NameProbe, text string) (n int, ok bool) {
	defer func() {
		if recover() != nil {
			n, ok = 0, false
		}
	}()
	return probe(text)
}

func countPhones(text string) int {
	matches := phonePattern.FindAllString(text, -1)
	n := 0
	for _, m := range matches {
		digits := digitsOnly(m)
		if len(digits) >= 7 && len(digits) <= 15 {
			n++
		}
	}
	return n
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func countValidBSNs(text string) int {
	n := 0
	for _, m := range bsnCandidate.FindAllString(text, -1) {
		if isValidBSN(m) {
			n++
		}
	}
	return n
}

// isValidBSN checks the 11-proof: sum of digit*weight (weights 9..2, then
// -1 for the last digit) must be divisible by 11.
func isValidBSN(digits string) bool {
	if len(digits) != 9 {
		return false
	}
	sum := 0
	for i, w := range bsnWeights {
		d := int(digits[i] - '0')
		sum += d * w
	}
	return sum%11 == 0
}

func countValidCreditCards(text string) int {
	n := 0
	for _, m := range ccCandidate.FindAllString(text, -1) {
		digits := digitsOnly(m)
		if len(digits) >= 13 && len(digits) <= 16 && luhnValid(digits) {
			n++
		}
	}
	return n
}

// luhnValid implements the standard mod-10 right-to-left doubling check.
func luhnValid(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}
