package michelin

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"michelin-scraper/models"
)

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// firstText returns the normalised text of the first match of selector.
func firstText(root *goquery.Selection, selector string) models.Field[string] {
	if selector == "" {
		return models.Missing[string]()
	}
	sel := root.Find(selector).First()
	if sel.Length() == 0 {
		return models.Missing[string]()
	}
	return models.TextField(normaliseText(sel.Text()))
}

// resolveURL makes href absolute against base. Without a base, href is
// returned as is.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func containsAny(s, chars string) bool {
	return chars != "" && strings.ContainsAny(s, chars)
}
