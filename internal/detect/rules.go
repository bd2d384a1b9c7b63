// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detect

import (
	"regexp"
)

// Rule is one pattern matcher. Group selects the submatch that is the
// sensitive value; 0 means the whole match.
type Rule struct {
	Category string
	Name     string
	Pattern  *regexp.Regexp
	Group    int
	Validate func(string) bool

	// Refine narrows a match to the offsets of its valid part. It runs
	// instead of Validate when set.
	Refine func(string) (start, end int, ok bool)

	Confidence float64
}

const privateKeyHeader = `(?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?`

// DefaultRules returns the built-in rule set. Order matters: when two matches
// of equal length overlap, the earlier rule wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category:   "PRIVATE_KEY",
			Name:       "pem-private-key",
			Pattern:    regexp.MustCompile(`-----BEGIN ` + privateKeyHeader + `-----[\s\S]*?-----END ` + privateKeyHeader + `-----`),
			Confidence: 1.0,
		},
		{
			Category:   "SSH_KEY",
			Name:       "ssh-public-key",
			Pattern:    regexp.MustCompile(`ssh-(?:rsa|dss|ed25519|ecdsa-sha2-nistp(?:256|384|521)) +[A-Za-z0-9+/]{40,}={0,3}(?:[ \t]+[^\s]+)?`),
			Confidence: 0.95,
		},
		{
			Category: "API_KEY",
			Name:     "api-key-prefix",
			Pattern: regexp.MustCompile(`\b(?:sk-[A-Za-z0-9_-]{20,}|sk_(?:live|test)_[0-9A-Za-z]{24,}|gh[pousr]_[A-Za-z0-9]{36}|` +
				`AKIA[0-9A-Z]{16}|AIza[0-9A-Za-z_-]{35}|xox[bpoa]-[0-9A-Za-z-]{10,}|glpat-[A-Za-z0-9_-]{20}|` +
				`SG\.[A-Za-z0-9_-]{22}\.[A-Za-z0-9_-]{43}|ya29\.[A-Za-z0-9_-]{20,})`),
			Confidence: 0.9,
		},
		{
			Category:   "CREDIT_CARD",
			Name:       "card-number-luhn",
			Pattern:    regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`),
			Validate:   validCreditCard,
			Refine:     refineCreditCard,
			Confidence: 0.95,
		},
		{
			Category:   "SSN",
			Name:       "us-ssn",
			Pattern:    regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Validate:   validSSN,
			Confidence: 0.9,
		},
		{
			Category:   "EMAIL",
			Name:       "email-address",
			Pattern:    regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			Confidence: 0.9,
		},
		{
			Category:   "PHONE",
			Name:       "phone-number",
			Pattern:    regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?(?:\(\d{3}\)|\b\d{3})[ .-]?\d{3}[ .-]\d{4}\b`),
			Validate:   validPhone,
			Confidence: 0.7,
		},
		{
			Category:   "IP_ADDRESS",
			Name:       "ipv4-address",
			Pattern:    regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			Validate:   validIPv4,
			Confidence: 0.6,
		},
		{
			Category:   "IBAN",
			Name:       "iban-mod97",
			Pattern:    regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,3})?\b`),
			Validate:   validIBAN,
			Confidence: 0.95,
		},
		{
			Category:   "AADHAAR_NUMBER",
			Name:       "aadhaar-verhoeff",
			Pattern:    regexp.MustCompile(`\b[2-9]\d{3} ?\d{4} ?\d{4}\b`),
			Validate:   validAadhaar,
			Confidence: 0.9,
		},
		{
			Category:   "PAN_NUMBER",
			Name:       "indian-pan",
			Pattern:    regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`),
			Validate:   validPAN,
			Confidence: 0.8,
		},
		{
			Category:   "PASSWORD",
			Name:       "password-assignment",
			Pattern:    regexp.MustCompile(`(?i)\b(?:password|passwd|pwd|secret|token)\b["']?\s*[:=]\s*["']?([^\s"',;]{4,})`),
			Group:      1,
			Confidence: 0.8,
		},
		{
			Category: "ADDRESS",
			Name:     "us-street-address",
			Pattern: regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Za-z0-9.'#-]+\s+){1,5}` +
				`(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl|Square|Sq|Terrace|Ter|Parkway|Pkwy|Circle|Cir)\.?,?` +
				`\s+(?:[A-Za-z.'-]+\s?){1,4},\s*[A-Z]{2}\s*\d{5}(?:-\d{4})?\b`),
			Confidence: 0.75,
		},
	}
}
