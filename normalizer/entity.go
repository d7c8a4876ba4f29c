package normalizer

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// A character reference body never spans a space, an ampersand or a
// semicolon, so "AT&T &amp; co" only sees "&amp;" as a token.
var entityPattern = regexp.MustCompile(`&([^;&\s]+);`)

// DecodeEntities replaces every resolvable character reference in text, trying
// hexadecimal, then decimal, then the named entity table. Anything that does
// not resolve is kept as written.
func DecodeEntities(text string) string {
	if !strings.Contains(text, "&") {
		return text
	}
	return entityPattern.ReplaceAllStringFunc(text, decodeEntity)
}

func decodeEntity(token string) string {
	name := token[1 : len(token)-1]
	if strings.HasPrefix(name, "#") {
		code := name[1:]
		if len(code) > 1 && (code[0] == 'x' || code[0] == 'X') {
			if r, ok := codePoint(code[1:], 16); ok {
				return string(r)
			}
		}
		if r, ok := codePoint(code, 10); ok {
			return string(r)
		}
		return token
	}
	if s, ok := namedEntity(name); ok {
		return s
	}
	return token
}

func codePoint(digits string, base int) (rune, bool) {
	n, err := strconv.ParseInt(digits, base, 32)
	if err != nil || !utf8.ValidRune(rune(n)) {
		return 0, false
	}
	return rune(n), true
}

// namedEntity only accepts a name that the html table resolves as a whole.
// html.UnescapeString also resolves legacy prefixes ("&ampx;" -> "&x;"), those
// leave the trailing semicolon behind and are rejected.
func namedEntity(name string) (string, bool) {
	token := "&" + name + ";"
	s := html.UnescapeString(token)
	if s == token || (strings.HasSuffix(s, ";") && s != ";") {
		return "", false
	}
	return s, true
}
