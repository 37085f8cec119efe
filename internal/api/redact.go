package api

import "strings"

// RedactSecrets scrubs session keys and OAuth tokens from a message before it
// is logged or stored on a snapshot. Error strings from the HTTP layer can
// embed the full request URL or cookie header.
func RedactSecrets(input string) string {
	out := input
	for _, marker := range []string{"sessionKey=", "sessionkey="} {
		out = redactAfter(out, marker, func(r rune) bool {
			return r == ';' || r == ' ' || r == '\t' || r == '\n'
		})
	}
	// Claude cookie and OAuth token prefixes.
	for _, marker := range []string{"sk-ant-sid01-", "sk-ant-oat01-"} {
		out = redactAfter(out, marker, func(r rune) bool {
			return !isTokenRune(r)
		})
	}
	return out
}

// RedactKey masks a credential for display, keeping just enough of the ends
// to recognize which key it is.
func RedactKey(key string) string {
	if key == "" {
		return "(empty)"
	}
	if len(key) < 12 {
		return "***"
	}
	return key[:4] + "***...***" + key[len(key)-3:]
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// redactAfter replaces everything following each occurrence of marker, up to
// the first rune matching stop, with "REDACTED".
func redactAfter(input, marker string, stop func(rune) bool) string {
	if !strings.Contains(input, marker) {
		return input
	}
	var b strings.Builder
	rest := input
	for {
		idx := strings.Index(rest, marker)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:idx+len(marker)])
		rest = rest[idx+len(marker):]
		end := strings.IndexFunc(rest, stop)
		if end < 0 {
			end = len(rest)
		}
		b.WriteString("REDACTED")
		rest = rest[end:]
	}
}
