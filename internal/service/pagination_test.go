package service

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(links []PageLink) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Label)
	}
	return out
}

func TestPaginatorSinglePage(t *testing.T) {
	p := paginator{path: "/", current: 1, perPage: 20, total: 0}
	page := p.page(nil)

	assert.Equal(t, 1, page.LastPage)
	assert.Nil(t, page.From)
	assert.Nil(t, page.To)
	assert.Nil(t, page.PrevPageURL)
	assert.Nil(t, page.NextPageURL)
	assert.NotNil(t, page.Data)
	assert.Equal(t, []string{"« Previous", "1", "Next »"}, labels(page.Links))
	assert.True(t, page.Links[1].Active)
	assert.Nil(t, page.Links[0].URL)
	assert.Nil(t, page.Links[2].URL)
}

func TestPaginatorWindows(t *testing.T) {
	cases := []struct {
		name    string
		current int
		total   int64
		want    []string
	}{
		{
			name: "small", current: 2, total: 60,
			want: []string{"« Previous", "1", "2", "3", "Next »"},
		},
		{
			name: "near start", current: 3, total: 20 * 20,
			want: []string{"« Previous", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "...", "19", "20", "Next »"},
		},
		{
			name: "middle", current: 10, total: 20 * 20,
			want: []string{"« Previous", "1", "2", "...", "7", "8", "9", "10", "11", "12", "13", "...", "19", "20", "Next »"},
		},
		{
			name: "near end", current: 18, total: 20 * 20,
			want: []string{"« Previous", "1", "2", "...", "11", "12", "13", "14", "15", "16", "17", "18", "19", "20", "Next »"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := paginator{path: "/", current: tc.current, perPage: 20, total: tc.total}
			page := p.page([]TodoResponse{{ID: 1}})
			assert.Equal(t, tc.want, labels(page.Links))

			active := 0
			for _, l := range page.Links {
				if l.Active {
					active++
					require.NotNil(t, l.URL)
				}
				if l.Label == "..." {
					assert.Nil(t, l.URL)
				}
			}
			assert.Equal(t, 1, active)
		})
	}
}

func TestPaginatorURLReplacesPage(t *testing.T) {
	p := paginator{path: "/", query: url.Values{"page": {"7"}, "search": {"a b"}}, current: 1, perPage: 20, total: 100}
	assert.Equal(t, "/?page=4&search=a+b", *p.url(4))
	assert.Equal(t, []string{"7"}, p.query["page"])
}
