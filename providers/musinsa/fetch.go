package musinsa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"review-radar/config"
	"review-radar/models"
)

const (
	pageSize = 50
	maxPages = 50
)

var goodsIDPattern = regexp.MustCompile(`/(?:goods|products|app/goods)/(\d+)`)

// Fetcher crawls product reviews from the Musinsa review API, with a
// goquery fallback over the embedded product-page JSON-LD when the
// API shape changes.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *http.Client
}

// NewFetcher creates a new Musinsa fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the provider name.
func (f *Fetcher) Name() string {
	return "musinsa"
}

// Matches reports whether the URL points at a Musinsa product page.
func (f *Fetcher) Matches(productURL string) bool {
	u, err := url.Parse(productURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Host, "musinsa.com")
}

// Crawl fetches up to maxCount reviews for the product URL.
func (f *Fetcher) Crawl(ctx context.Context, productURL string, maxCount int) (*models.CrawlResult, error) {
	log := f.Logger.With(zap.String("provider", f.Name()), zap.String("url", productURL))

	goodsID := extractGoodsID(productURL)
	if goodsID == "" {
		return &models.CrawlResult{
			Success: false,
			Message: "상품 URL에서 상품 번호를 찾을 수 없습니다",
		}, nil
	}

	reviews, err := f.crawlAPI(ctx, goodsID, maxCount)
	if err != nil {
		log.Warn("review API failed, trying page fallback", zap.Error(err))
		reviews, err = f.crawlProductPage(ctx, productURL, maxCount)
		if err != nil {
			return nil, fmt.Errorf("crawl reviews for goods %s: %w", goodsID, err)
		}
	}

	if len(reviews) == 0 {
		return &models.CrawlResult{
			Success: false,
			Message: "수집된 리뷰가 없습니다",
		}, nil
	}

	log.Info("crawl finished", zap.Int("reviews", len(reviews)))
	return &models.CrawlResult{
		Success:  true,
		Reviews:  reviews,
		RawCount: len(reviews),
	}, nil
}

func extractGoodsID(productURL string) string {
	m := goodsIDPattern.FindStringSubmatch(productURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// crawlAPI pages through the review list endpoint until maxCount
// reviews are collected or the listing runs dry.
func (f *Fetcher) crawlAPI(ctx context.Context, goodsID string, maxCount int) ([]models.Review, error) {
	var reviews []models.Review
	for page := 1; page <= maxPages && len(reviews) < maxCount; page++ {
		endpoint := fmt.Sprintf("%s/api2/review/v1/view/list?goodsNo=%s&page=%d&pageSize=%d",
			f.Config.MusinsaBaseURL, goodsID, page, pageSize)

		var payload reviewListResponse
		if err := f.getJSON(ctx, endpoint, &payload); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(payload.Data.List) == 0 {
			break
		}

		for _, item := range payload.Data.List {
			reviews = append(reviews, models.Review{
				ID:     strconv.FormatInt(item.No, 10),
				Text:   item.Content,
				Rating: gradeToRating(item.Grade),
				Author: item.UserName,
				Date:   item.CreateDate,
			})
			if len(reviews) >= maxCount {
				break
			}
		}
	}
	return reviews, nil
}

// crawlProductPage scrapes the schema.org Product JSON-LD embedded in
// the product page.
func (f *Fetcher) crawlProductPage(ctx context.Context, productURL string, maxCount int) ([]models.Review, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, productURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; review-radar/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch product page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product page status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse product page: %w", err)
	}

	var reviews []models.Review
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var product ldProduct
		if err := json.Unmarshal([]byte(sel.Text()), &product); err != nil {
			return true
		}
		if product.Type != "Product" || len(product.Review) == 0 {
			return true
		}
		for _, r := range product.Review {
			reviews = append(reviews, models.Review{
				Text:   r.ReviewBody,
				Rating: gradeToRating(r.ReviewRating.RatingValue),
				Author: r.Author.Name,
				Date:   r.DatePublished,
			})
			if len(reviews) >= maxCount {
				break
			}
		}
		return false
	})

	return reviews, nil
}

func (f *Fetcher) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// gradeToRating parses the rating, accepting both "5" and 5 payloads.
func gradeToRating(grade json.Number) int {
	if i, err := grade.Int64(); err == nil {
		return int(i)
	}
	if fv, err := grade.Float64(); err == nil {
		return int(fv)
	}
	return 0
}
