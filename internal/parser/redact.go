package parser

import "regexp"

// phoneRun matches digit runs long enough to be a phone number or
// account identifier, allowing separators inside the run.
var phoneRun = regexp.MustCompile(`\d[\d\s\-]{6,}\d`)

var digitOnly = regexp.MustCompile(`\d`)

// Redact masks phone-like digit runs before the text leaves the process.
// The last three digits of each run are kept so operators can still
// correlate a redacted message with a payer.
func Redact(text string) string {
	return phoneRun.ReplaceAllStringFunc(text, func(run string) string {
		digits := digitOnly.FindAllString(run, -1)
		if len(digits) <= 3 {
			return "***"
		}
		tail := ""
		for _, d := range digits[len(digits)-3:] {
			tail += d
		}
		return "***" + tail
	})
}

// MaskMsisdn keeps the trailing three digits of a sender address.
func MaskMsisdn(msisdn string) string {
	digits := digitOnly.FindAllString(msisdn, -1)
	if len(digits) == 0 {
		return ""
	}
	if len(digits) <= 3 {
		return "***"
	}
	tail := ""
	for _, d := range digits[len(digits)-3:] {
		tail += d
	}
	return "***" + tail
}
