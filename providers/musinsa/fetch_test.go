package musinsa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"review-radar/config"
)

func newTestFetcher(baseURL string) *Fetcher {
	return NewFetcher(&config.Config{MusinsaBaseURL: baseURL}, zap.NewNop())
}

func TestExtractGoodsID(t *testing.T) {
	cases := map[string]string{
		"https://www.musinsa.com/goods/4251772":          "4251772",
		"https://www.musinsa.com/products/4251772":       "4251772",
		"https://www.musinsa.com/app/goods/4251772":      "4251772",
		"https://www.musinsa.com/goods/4251772?color=99": "4251772",
		"https://www.musinsa.com/brand/something":        "",
		"not a url": "",
	}
	for input, want := range cases {
		assert.Equal(t, want, extractGoodsID(input), input)
	}
}

func TestMatches(t *testing.T) {
	f := newTestFetcher("")
	assert.True(t, f.Matches("https://www.musinsa.com/goods/1"))
	assert.True(t, f.Matches("https://store.musinsa.com/app/goods/1"))
	assert.False(t, f.Matches("https://smartstore.naver.com/item/1"))
	assert.False(t, f.Matches("::not-a-url"))
}

func TestCrawlRejectsURLWithoutGoodsID(t *testing.T) {
	f := newTestFetcher("")

	result, err := f.Crawl(context.Background(), "https://www.musinsa.com/brand/nike", 10)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "상품 URL에서 상품 번호를 찾을 수 없습니다", result.Message)
}

func apiPage(reviews ...map[string]any) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"list": reviews,
			"page": map[string]any{"totalCount": len(reviews), "lastPage": 1},
		},
	}
}

func TestCrawlPagesThroughAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api2/review/v1/view/list", r.URL.Path)
		require.Equal(t, "123", r.URL.Query().Get("goodsNo"))

		switch r.URL.Query().Get("page") {
		case "1":
			json.NewEncoder(w).Encode(apiPage(
				map[string]any{"no": 1, "content": "아주 좋아요", "grade": "5", "createDate": "2025-01-01", "userNickName": "buyer1"},
				map[string]any{"no": 2, "content": "별로예요", "grade": 2, "createDate": "2025-01-02", "userNickName": "buyer2"},
			))
		default:
			json.NewEncoder(w).Encode(apiPage())
		}
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	result, err := f.Crawl(context.Background(), "https://www.musinsa.com/goods/123", 10)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Reviews, 2)

	assert.Equal(t, "1", result.Reviews[0].ID)
	assert.Equal(t, "아주 좋아요", result.Reviews[0].Text)
	assert.Equal(t, 5, result.Reviews[0].Rating) // string grade
	assert.Equal(t, "buyer1", result.Reviews[0].Author)
	assert.Equal(t, 2, result.Reviews[1].Rating) // numeric grade
}

func TestCrawlHonorsMaxCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reviews []map[string]any
		for i := 0; i < pageSize; i++ {
			reviews = append(reviews, map[string]any{
				"no": i, "content": fmt.Sprintf("review %d", i), "grade": 4,
			})
		}
		json.NewEncoder(w).Encode(apiPage(reviews...))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	result, err := f.Crawl(context.Background(), "https://www.musinsa.com/goods/123", 7)
	require.NoError(t, err)
	assert.Len(t, result.Reviews, 7)
}

func TestCrawlEmptyListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiPage())
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	result, err := f.Crawl(context.Background(), "https://www.musinsa.com/goods/123", 10)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "수집된 리뷰가 없습니다", result.Message)
}

func TestCrawlFallsBackToProductPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api2/review/v1/view/list", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/goods/123", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
			<script type="application/ld+json">{"@type":"Organization"}</script>
			<script type="application/ld+json">{
				"@type": "Product",
				"review": [
					{"author": {"name": "buyer"}, "reviewBody": "튼튼합니다", "datePublished": "2025-02-01",
					 "reviewRating": {"ratingValue": 4}}
				]
			}</script>
		</head><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	result, err := f.Crawl(context.Background(), srv.URL+"/goods/123", 10)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Reviews, 1)
	assert.Equal(t, "튼튼합니다", result.Reviews[0].Text)
	assert.Equal(t, 4, result.Reviews[0].Rating)
	assert.Equal(t, "buyer", result.Reviews[0].Author)
}
