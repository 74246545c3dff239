package crawl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPage struct {
	hrefs     []string
	scrollErr error
	pageDowns int
}

func (p *scriptedPage) Hrefs(context.Context, string) ([]string, error) { return p.hrefs, nil }
func (p *scriptedPage) ScrollToBottom(context.Context, string) error { return p.scrollErr }
func (p *scriptedPage) PageDown(context.Context) error {
	p.pageDowns++
	return errors.New("no keyboard")
}

func TestPaginator_CollectNew(t *testing.T) {
	p := NewPaginator(slog.New(slog.NewTextHandler(io.Discard, nil)))
	page := &scriptedPage{hrefs: []string{"a", "b", "c", "b"}}

	got, err := p.CollectNew(context.Background(), page, map[string]struct{}{"a": {}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "b"}, got)
}

func TestPaginator_ScrollFallsBackToPageDown(t *testing.T) {
	p := NewPaginator(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ok := &scriptedPage{}
	p.Scroll(context.Background(), ok)
	assert.Zero(t, ok.pageDowns)

	broken := &scriptedPage{scrollErr: errors.New("feed not found")}
	p.Scroll(context.Background(), broken)
	assert.Equal(t, 1, broken.pageDowns)
}

func TestIsEndOfList(t *testing.T) {
	assert.True(t, IsEndOfList(`<span>You've reached the end of the list.</span>`))
	assert.False(t, IsEndOfList(`<span>Loading...</span>`))
}
