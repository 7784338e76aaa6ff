package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const bithumbListHTML = `<html><body>
<div class="list">
<a href="/notice/201">파일코인(FIL) 원화 마켓 추가</a>
<a href="/notice/202">거래소 이용 안내</a>
<a href="/notice/detail?id=203">수이(SUI) 원화마켓 추가 안내</a>
<a href="/notice/201">파일코인(FIL) 원화 마켓 추가</a>
</div>
</body></html>`

func TestBithumbListNoticesStatic(t *testing.T) {
	t.Parallel()

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Write([]byte(bithumbListHTML))
	}))
	defer server.Close()

	source := NewBithumbSource(server.Client(), nil, nil)
	source.listURL = server.URL
	source.baseURL = server.URL

	notices, err := source.ListNotices(context.Background())
	if err != nil {
		t.Fatalf("listNotices: %v", err)
	}

	if len(notices) != 2 {
		t.Fatalf("notices = %d, want 2: %+v", len(notices), notices)
	}
	if notices[0].NoticeID != "201" || notices[1].NoticeID != "203" {
		t.Fatalf("unexpected ids: %+v", notices)
	}
	if notices[0].URL != server.URL+"/notice/201" {
		t.Fatalf("url not absolutized: %q", notices[0].URL)
	}
	if gotUA != browserUserAgent {
		t.Fatalf("user agent = %q", gotUA)
	}
}

func TestBithumbListNoticesFallsBackToRenderer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	renderer := &fakeRenderer{html: bithumbListHTML}
	source := NewBithumbSource(server.Client(), renderer, nil)
	source.listURL = server.URL
	source.baseURL = server.URL

	notices, err := source.ListNotices(context.Background())
	if err != nil {
		t.Fatalf("listNotices: %v", err)
	}
	if renderer.calls != 1 {
		t.Fatalf("renderer calls = %d, want 1", renderer.calls)
	}
	if len(notices) != 2 {
		t.Fatalf("notices = %d, want 2", len(notices))
	}
}

func TestBithumbListNoticesStaticErrorNoRenderer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewBithumbSource(server.Client(), nil, nil)
	source.listURL = server.URL

	if _, err := source.ListNotices(context.Background()); err == nil {
		t.Fatal("expected fetch error without a renderer fallback")
	}
}
