package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// selectorLadder lists the markup shapes exhibitor directories actually use,
// most specific first. The first selector with any hits wins; mixing hits
// from several selectors tends to pull in navigation junk.
var selectorLadder = []string{
	`a[href*="exhibitor"]`,
	`a[href*="company"]`,
	`.exhibitor`,
	`.exhibitor-item`,
	`.company`,
	`.company-name`,
	`[data-exhibitor]`,
	`[data-company]`,
}

// linkHints mark anchors worth considering when no ladder selector matches.
var linkHints = []string{"exhibitor", "company", "vendor", "booth"}

// candidate is one raw extraction from the page, before name validation.
type candidate struct {
	text        string // element text, newline-separated per child block
	attrName    string // aria-label/title/data-* fallback
	headingName string // child heading text
	headingDesc string // sibling description for the heading
}

// extractCandidates pulls raw exhibitor candidates from the document.
func extractCandidates(doc *goquery.Document) []candidate {
	var sel *goquery.Selection
	for _, s := range selectorLadder {
		if found := doc.Find(s); found.Length() > 0 {
			sel = found
			break
		}
	}

	if sel == nil {
		sel = doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			href = strings.ToLower(href)
			for _, hint := range linkHints {
				if strings.Contains(href, hint) {
					return true
				}
			}
			return false
		})
	}

	candidates := make([]candidate, 0, sel.Length())
	sel.Each(func(_ int, el *goquery.Selection) {
		candidates = append(candidates, candidateFrom(el))
	})
	return candidates
}

// candidateFrom collects every naming signal an element offers.
func candidateFrom(el *goquery.Selection) candidate {
	c := candidate{text: blockText(el)}

	for _, attr := range []string{"aria-label", "title", "data-name", "data-company"} {
		if v, ok := el.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				c.attrName = v
				break
			}
		}
	}

	heading := el.Find(`h1, h2, h3, h4, [class*="name"]`).First()
	if heading.Length() > 0 {
		c.headingName = strings.TrimSpace(heading.Text())
		desc := el.Find(`p, .description, [class*="desc"]`).First()
		if desc.Length() > 0 {
			if d := strings.TrimSpace(desc.Text()); len(d) > 10 {
				c.headingDesc = d
			}
		}
	}

	return c
}

// blockText renders an element's text with newlines between child nodes so
// card layouts keep their name/description boundary.
func blockText(el *goquery.Selection) string {
	var b strings.Builder
	el.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		} else {
			b.WriteString("\n")
			b.WriteString(c.Text())
			b.WriteString("\n")
		}
	})
	return strings.TrimSpace(b.String())
}

// cleanCandidate turns a raw candidate into a validated name and blurb.
// Signals are tried in order: element text, naming attributes, child
// headings.
func cleanCandidate(c candidate) (name, blurb string, ok bool) {
	if n, b := splitNameAndBlurb(c.text); n != "" && acceptName(n) {
		return n, capBlurb(b), true
	}

	if n, valid := normalizeName(c.attrName); valid && acceptName(n) {
		return n, "", true
	}

	if n, valid := normalizeName(c.headingName); valid && acceptName(n) {
		return n, capBlurb(c.headingDesc), true
	}

	return "", "", false
}
