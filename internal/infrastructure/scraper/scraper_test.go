package scraper

import "context"

// fakeRenderer serves canned HTML in place of the headless browser.
type fakeRenderer struct {
	html  string
	err   error
	calls int
	urls  []string
}

func (r *fakeRenderer) HTML(_ context.Context, url string) (string, error) {
	r.calls++
	r.urls = append(r.urls, url)
	if r.err != nil {
		return "", r.err
	}
	return r.html, nil
}
