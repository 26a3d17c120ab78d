// Package inflect holds the name-transform strategy used to derive route
// segments and property names from Go identifiers.
package inflect

import (
	"strings"
	"unicode"
)

// Namer turns a resource short name into a URI path segment
type Namer interface {
	Segment(shortName string) string
}

// DashNamer is the default strategy: "BookReview" -> "book-reviews"
type DashNamer struct{}

// Segment implements Namer
func (DashNamer) Segment(shortName string) string {
	return ToDashCase(Pluralize(shortName))
}

// SnakeNamer produces "book_reviews"
type SnakeNamer struct{}

// Segment implements Namer
func (SnakeNamer) Segment(shortName string) string {
	return ToSnakeCase(Pluralize(shortName))
}

// NamerFor returns the strategy registered under name, falling back to
// DashNamer
func NamerFor(name string) Namer {
	switch name {
	case "snake":
		return SnakeNamer{}
	default:
		return DashNamer{}
	}
}

var irregulars = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
	"tooth":  "teeth",
	"foot":   "feet",
	"mouse":  "mice",
	"goose":  "geese",
}

var uncountables = map[string]bool{
	"data":        true,
	"metadata":    true,
	"equipment":   true,
	"information": true,
	"news":        true,
	"series":      true,
	"species":     true,
}

// Pluralize returns the plural of the last word of a camel, snake or dash
// cased name: "Book" -> "Books", "SalesPerson" -> "SalesPeople".
func Pluralize(word string) string {
	if word == "" {
		return word
	}

	start := lastWordStart(word)
	head, last := word[:start], word[start:]
	lower := strings.ToLower(last)

	if uncountables[lower] {
		return word
	}
	if plural, ok := irregulars[lower]; ok {
		return head + matchCase(last, plural)
	}

	switch {
	case strings.HasSuffix(lower, "y"):
		if len(lower) > 1 && !isVowel(lower[len(lower)-2]) {
			return word[:len(word)-1] + "ies"
		}
		return word + "s"
	case strings.HasSuffix(lower, "s") || strings.HasSuffix(lower, "x") ||
		strings.HasSuffix(lower, "z") || strings.HasSuffix(lower, "ch") ||
		strings.HasSuffix(lower, "sh"):
		return word + "es"
	case strings.HasSuffix(lower, "fe"):
		return word[:len(word)-2] + "ves"
	case strings.HasSuffix(lower, "f") && !strings.HasSuffix(lower, "ff") && !strings.HasSuffix(lower, "oof"):
		return word[:len(word)-1] + "ves"
	default:
		return word + "s"
	}
}

// lastWordStart returns the byte offset where the last word begins
func lastWordStart(s string) int {
	start := 0
	runes := []rune(s)
	offset := 0
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ':
			start = offset + len(string(r))
		case i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]):
			start = offset
		}
		offset += len(string(r))
	}
	return start
}

func matchCase(original, replacement string) string {
	if original == "" {
		return replacement
	}
	if r := []rune(original)[0]; unicode.IsUpper(r) {
		rs := []rune(replacement)
		rs[0] = unicode.ToUpper(rs[0])
		return string(rs)
	}
	return replacement
}

func isVowel(c byte) bool {
	return c == 'a' || c == 'e' || c == 'i' || c == 'o' || c == 'u'
}

// ToSnakeCase converts CamelCase to snake_case
// Handles acronyms properly (HTTPRequest -> http_request)
func ToSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		switch {
		case r == '-' || r == ' ':
			result.WriteRune('_')
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				if unicode.IsLower(prev) || unicode.IsDigit(prev) {
					result.WriteRune('_')
				} else if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
					result.WriteRune('_')
				}
			}
			result.WriteRune(unicode.ToLower(r))
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ToDashCase converts CamelCase to dash-case
func ToDashCase(s string) string {
	return strings.ReplaceAll(ToSnakeCase(s), "_", "-")
}

// LowerCamel lower-cases the leading word of a Go identifier the way
// encoding/json users usually name fields: "Title" -> "title",
// "ISBN" -> "isbn", "URLPath" -> "urlPath", "AuthorID" -> "authorID".
func LowerCamel(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			break
		}
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(r)
	}
	return string(runes)
}
