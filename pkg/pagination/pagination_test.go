package pagination

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p := FromContext(c)

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Page != 1 {
		t.Errorf("expected page 1, got %d", p.Page)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=25", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p := FromContext(c)

	if p.Page != 3 || p.Limit != 25 {
		t.Errorf("expected page 3 limit 25, got %+v", p)
	}
	if p.Offset() != 50 {
		t.Errorf("expected offset 50, got %d", p.Offset())
	}
}

func TestNew_Normalises(t *testing.T) {
	tests := []struct {
		page, limit int
		want        Params
	}{
		{0, 0, Params{Page: 1, Limit: DefaultLimit}},
		{-4, -1, Params{Page: 1, Limit: DefaultLimit}},
		{2, 500, Params{Page: 2, Limit: MaxLimit}},
		{7, 5, Params{Page: 7, Limit: 5}},
	}
	for _, tt := range tests {
		if got := New(tt.page, tt.limit); got != tt.want {
			t.Errorf("New(%d, %d) = %+v, want %+v", tt.page, tt.limit, got, tt.want)
		}
	}
}

func TestFromContext_Garbage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=abc&limit=xyz", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if p := FromContext(c); p != (Params{Page: 1, Limit: DefaultLimit}) {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestNewResponse_Meta(t *testing.T) {
	resp := NewResponse([]int{1, 2}, 21, Params{Page: 2, Limit: 10})
	want := Meta{Total: 21, Page: 2, Limit: 10, Pages: 3}
	if resp.Pagination != want {
		t.Errorf("meta = %+v, want %+v", resp.Pagination, want)
	}
}

func TestPages(t *testing.T) {
	tests := []struct{ total, limit, want int }{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := Pages(tt.total, tt.limit); got != tt.want {
			t.Errorf("Pages(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestHasNext(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	if !p.HasNext(21) {
		t.Error("expected next page for 21 items")
	}
	if p.HasNext(20) {
		t.Error("expected no next page for 20 items")
	}
}

func TestNew_HugePageKeepsOffsetPositive(t *testing.T) {
	for _, limit := range []int{1, 10, MaxLimit, math.MaxInt} {
		p := New(math.MaxInt, limit)
		if p.Page != MaxPage {
			t.Errorf("limit %d: page = %d, want %d", limit, p.Page, MaxPage)
		}
		if off := p.Offset(); off < 0 {
			t.Errorf("limit %d: offset overflowed to %d", limit, off)
		}
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=9223372036854775807&limit=10", nil)
	if off := FromContext(e.NewContext(req, httptest.NewRecorder())).Offset(); off < 0 {
		t.Errorf("query page overflowed offset to %d", off)
	}
}
