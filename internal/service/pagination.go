package service

import (
	"net/url"
	"strconv"
)

const onEachSide = 3

// PageLink is one entry of a paginator's link strip. URL is nil for
// disabled edges and "..." separators.
type PageLink struct {
	URL    *string `json:"url"`
	Label  string  `json:"label"`
	Active bool    `json:"active"`
}

// TodoPage is one page of a filtered listing.
type TodoPage struct {
	Data        []TodoResponse `json:"data"`
	CurrentPage int            `json:"current_page"`
	LastPage    int            `json:"last_page"`
	PerPage     int            `json:"per_page"`
	Total       int64          `json:"total"`
	From        *int           `json:"from"`
	To          *int           `json:"to"`
	PrevPageURL *string        `json:"prev_page_url"`
	NextPageURL *string        `json:"next_page_url"`
	Links       []PageLink     `json:"links"`
}

// paginator builds page URLs that keep every query parameter of the
// original request except page.
type paginator struct {
	path    string
	query   url.Values
	current int
	perPage int
	total   int64
}

func (p paginator) lastPage() int {
	last := int((p.total + int64(p.perPage) - 1) / int64(p.perPage))
	if last < 1 {
		return 1
	}
	return last
}

func (p paginator) url(page int) *string {
	q := url.Values{}
	for k, v := range p.query {
		if k == "page" {
			continue
		}
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	u := p.path + "?" + q.Encode()
	return &u
}

func (p paginator) page(items []TodoResponse) TodoPage {
	last := p.lastPage()
	out := TodoPage{
		Data:        items,
		CurrentPage: p.current,
		LastPage:    last,
		PerPage:     p.perPage,
		Total:       p.total,
	}
	if out.Data == nil {
		out.Data = []TodoResponse{}
	}

	if len(items) > 0 {
		from := (p.current-1)*p.perPage + 1
		to := from + len(items) - 1
		out.From, out.To = &from, &to
	}
	if p.current > 1 {
		out.PrevPageURL = p.url(p.current - 1)
	}
	if p.current < last {
		out.NextPageURL = p.url(p.current + 1)
	}

	out.Links = append(out.Links, PageLink{URL: out.PrevPageURL, Label: "« Previous"})
	for i, block := range p.window(last) {
		if i > 0 {
			out.Links = append(out.Links, PageLink{Label: "..."})
		}
		for _, n := range block {
			out.Links = append(out.Links, PageLink{URL: p.url(n), Label: strconv.Itoa(n), Active: n == p.current})
		}
	}
	out.Links = append(out.Links, PageLink{URL: out.NextPageURL, Label: "Next »"})
	return out
}

// window splits the page numbers into blocks separated by "...".
func (p paginator) window(last int) [][]int {
	if last < onEachSide*2+8 {
		return [][]int{pageRange(1, last)}
	}

	size := onEachSide + 4
	switch {
	case p.current <= size:
		return [][]int{pageRange(1, size+onEachSide), pageRange(last-1, last)}
	case p.current > last-size:
		return [][]int{pageRange(1, 2), pageRange(last-(size+onEachSide-1), last)}
	default:
		return [][]int{
			pageRange(1, 2),
			pageRange(p.current-onEachSide, p.current+onEachSide),
			pageRange(last-1, last),
		}
	}
}

func pageRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
