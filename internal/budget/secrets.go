package budget

import "regexp"

// secretPatterns flags credential-looking content before it is shipped to
// the model endpoint. Advisory only: the scan never drops or rewrites a
// block, it just surfaces a warning in the Selection bookkeeping.
var secretPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"API key", regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*["']?[a-zA-Z0-9\-_]{20,}`)},
	{"token", regexp.MustCompile(`(?i)token\s*[:=]\s*["']?[a-zA-Z0-9\-_]{20,}`)},
	{"password", regexp.MustCompile(`(?i)password\s*[:=]\s*["']?[^\s"']{8,}`)},
	{"private key", regexp.MustCompile(`-----BEGIN [A-Z ]+PRIVATE KEY-----`)},
}

// scanSecrets returns the names of secret-like patterns found in text.
func scanSecrets(text string) []string {
	var found []string
	for _, p := range secretPatterns {
		if p.re.MatchString(text) {
			found = append(found, p.name)
		}
	}
	return found
}
