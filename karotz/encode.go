package karotz

import "strings"

const upperhex = "0123456789ABCDEF"

// encodeComponent percent-encodes s the way browsers encode a URI component:
// everything but ASCII letters, digits and -_.!~*'() is escaped as UTF-8
// bytes. url.QueryEscape differs (space becomes '+', !*'() are escaped) and
// the rabbit's CGI scripts expect the browser form.
func encodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if unreservedComponent(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[ch>>4])
		b.WriteByte(upperhex[ch&0x0f])
	}
	return b.String()
}

func unreservedComponent(ch byte) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	}
	switch ch {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
