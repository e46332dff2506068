// Package paginator splits a counted list into fixed-size pages.
package paginator

import "strconv"

// Page describes one page of a list of Count items.
type Page struct {
	// Number is the 1-based page number.
	Number int
	// NumPages is never less than 1, even for an empty list.
	NumPages int
	PerPage  int
	Count    int
}

// New returns the page selected by the raw "page" query value.
// Values that are not integers select the first page; out of range
// values select the last page.
func New(raw string, count, perPage int) Page {
	if perPage < 1 {
		perPage = 1
	}
	if count < 0 {
		count = 0
	}

	numPages := (count + perPage - 1) / perPage
	if numPages < 1 {
		numPages = 1
	}

	number, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		number = 1
	case number < 1 || number > numPages:
		number = numPages
	}

	return Page{Number: number, NumPages: numPages, PerPage: perPage, Count: count}
}

// Offset returns the number of items before the page.
func (p Page) Offset() int { return (p.Number - 1) * p.PerPage }

// Limit returns the maximum number of items on the page.
func (p Page) Limit() int { return p.PerPage }

func (p Page) HasPrevious() bool { return p.Number > 1 }

func (p Page) HasNext() bool { return p.Number < p.NumPages }

func (p Page) PreviousPageNumber() int { return p.Number - 1 }

func (p Page) NextPageNumber() int { return p.Number + 1 }
