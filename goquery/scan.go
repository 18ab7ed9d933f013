// Package goquery scans the host site's markup for username-bearing
// containers and rewrites it with flag annotations.
//
// The selectors and route heuristics here are coupled to the site's current
// markup, which is a versionless external dependency. Markup changes land in
// this package and nowhere else.
package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/vigneshmr/flagup"
)

// Structural role markers for the container kinds we scan: a timeline
// tweet, a user list cell, and the name block both of them contain.
const (
	containerSelector = `article[data-testid="tweet"], div[data-testid="UserCell"], div[data-testid="User-Name"]`
	nameBlockSelector = `div[data-testid="User-Name"]`
)

// siteHosts are hosts whose profile links we accept in absolute form.
var siteHosts = map[string]bool{
	"x.com":           true,
	"www.x.com":       true,
	"twitter.com":     true,
	"www.twitter.com": true,
}

// handleFromHref extracts a handle from a profile link. Only single-segment
// paths qualify; reserved application routes and hashtag links do not.
func handleFromHref(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Host != "" && !siteHosts[strings.ToLower(u.Host)] {
		return "", false
	}

	path := strings.Trim(u.Path, "/")
	if path == "" || strings.Contains(path, "/") {
		return "", false
	}
	if flagup.ReservedRoutes[strings.ToLower(path)] {
		return "", false
	}
	if !flagup.ValidHandle(path) {
		return "", false
	}
	return path, true
}

// ExtractHandle returns the canonical handle displayed in a container.
//
// The dedicated name block's profile links are preferred. Failing that, any
// container link qualifies if its visible text starts with "@" or equals the
// link's path segment case-insensitively; the text check keeps media and
// timestamp links (which also point at profiles) from winning.
func ExtractHandle(container *goquery.Selection) (string, bool) {
	scope := container
	if !container.Is(nameBlockSelector) {
		if nb := container.Find(nameBlockSelector); nb.Length() > 0 {
			scope = nb.First()
		} else {
			scope = nil
		}
	}

	if scope != nil {
		if h, ok := firstProfileLink(scope, false); ok {
			return h, true
		}
	}

	return firstProfileLink(container, true)
}

// firstProfileLink returns the first qualifying handle among the scope's
// links. With requireText set, the anchor's visible text must also vouch
// for the handle.
func firstProfileLink(scope *goquery.Selection, requireText bool) (string, bool) {
	var handle string
	scope.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		h, ok := handleFromHref(href)
		if !ok {
			return true
		}
		if requireText {
			text := strings.TrimSpace(a.Text())
			if !strings.HasPrefix(text, "@") && !strings.EqualFold(text, h) {
				return true
			}
		}
		handle = h
		return false
	})
	return handle, handle != ""
}

// Candidate is a handle that still needs annotation work, with the
// processing state its container currently carries.
type Candidate struct {
	Handle string
	State  string
}

// ScanCandidates parses a page snapshot and returns the unique handles whose
// containers are unprocessed or retryably failed. Containers marked done,
// processing, or permanently failed are not candidates.
func ScanCandidates(html string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, flagup.Errorf(flagup.EINVALID, "parse page snapshot: %v", err)
	}

	seen := make(map[string]bool)
	var candidates []Candidate

	doc.Find(containerSelector).Each(func(_ int, container *goquery.Selection) {
		state, _ := container.Attr(flagup.StateAttr)
		switch state {
		case flagup.StateDone, flagup.StateProcessing, flagup.StateFailedPermanent:
			return
		}

		handle, ok := ExtractHandle(container)
		if !ok || seen[handle] {
			return
		}
		seen[handle] = true
		candidates = append(candidates, Candidate{Handle: handle, State: state})
	})

	return candidates, nil
}
