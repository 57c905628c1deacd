// Package pdfmeta pulls a paper's title and DOI out of a local PDF so
// an analysis can start from a file instead of a typed title.
package pdfmeta

import (
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// ExtractDOI scans the first pages of a PDF for a DOI. An absent DOI is
// ("", nil), not an error.
func ExtractDOI(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	maxPages := 3
	if r.NumPage() < maxPages {
		maxPages = r.NumPage()
	}
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if doi := findDOI(text); doi != "" {
			return doi, nil
		}
	}
	return "", nil
}

// ExtractTitle returns the first substantial line of the first page.
// Best effort; front matter like arXiv banners is skipped.
func ExtractTitle(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if r.NumPage() < 1 {
		return "", nil
	}
	page := r.Page(1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", nil
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isFrontMatter(line) {
			return line, nil
		}
	}
	return "", nil
}

func findDOI(text string) string {
	m := doiPattern.FindString(text)
	// Trailing punctuation from surrounding prose is not part of the DOI.
	return strings.TrimRight(m, ".,;)")
}

func isFrontMatter(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range []string{
		"arxiv:", "preprint", "proceedings of", "copyright", "all rights reserved",
		"downloaded from", "creative commons", "journal of", "vol.", "doi:",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
