package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/kwhite/polytrack/internal/domain"
	"github.com/kwhite/polytrack/internal/logger"
)

type fakeMarketWriter struct {
	existing map[string]bool
	failIDs  map[string]bool
	upserts  []*domain.Market
}

func (f *fakeMarketWriter) Upsert(ctx context.Context, market *domain.Market) (bool, error) {
	if f.failIDs[market.PolymarketID] {
		return false, errors.New("storage refused")
	}
	f.upserts = append(f.upserts, market)
	if f.existing[market.PolymarketID] {
		return false, nil
	}
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[market.PolymarketID] = true
	return true, nil
}

type progressSnapshot struct {
	fetched, added, updated, failed int
}

type fakeProgress struct {
	snapshots []progressSnapshot
}

func (f *fakeProgress) UpdateProgress(ctx context.Context, fetched, added, updated, failed int) {
	f.snapshots = append(f.snapshots, progressSnapshot{fetched, added, updated, failed})
}

func gammaTestMarket(id int) gammaMarket {
	return gammaMarket{
		ID:            strconv.Itoa(id),
		Question:      "Will market " + strconv.Itoa(id) + " resolve yes?",
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.42","0.58"]`,
		Volume:        "12345.6",
		Active:        true,
	}
}

func newGammaServer(t *testing.T, pages [][]gammaMarket) *httptest.Server {
	t.Helper()
	call := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if call >= len(pages) {
			json.NewEncoder(w).Encode([]gammaMarket{})
			return
		}
		json.NewEncoder(w).Encode(pages[call])
		call++
	}))
}

func newTestScrapeService(writer MarketWriter, baseURL string, pageSize, maxMarkets, progressEvery int) *ScrapeService {
	return NewScrapeService(writer, logger.New(&logger.Config{Level: "error", Output: io.Discard}), &ScrapeConfig{
		BaseURL:       baseURL,
		PageSize:      pageSize,
		MaxMarkets:    maxMarkets,
		ProgressEvery: progressEvery,
	})
}

func TestScrapeRunCountsAddedAndUpdated(t *testing.T) {
	page := []gammaMarket{gammaTestMarket(1), gammaTestMarket(2), gammaTestMarket(3)}
	ts := newGammaServer(t, [][]gammaMarket{page})
	defer ts.Close()

	writer := &fakeMarketWriter{existing: map[string]bool{"2": true}}
	svc := newTestScrapeService(writer, ts.URL, 10, 100, 2)

	progress := &fakeProgress{}
	result, err := svc.Run(context.Background(), progress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Fetched != 3 || result.Added != 2 || result.Updated != 1 || result.Failed != 0 {
		t.Errorf("result = %+v, want fetched=3 added=2 updated=1 failed=0", result)
	}

	// Parsed nested JSON arrays into the model.
	if len(writer.upserts) != 3 {
		t.Fatalf("upserted %d markets, want 3", len(writer.upserts))
	}
	first := writer.upserts[0]
	if len(first.Outcomes) != 2 || first.Outcomes[0] != "Yes" {
		t.Errorf("outcomes not decoded: %v", first.Outcomes)
	}
	if first.Volume != 12345.6 {
		t.Errorf("volume = %v, want 12345.6", first.Volume)
	}

	// Final snapshot always reported.
	if len(progress.snapshots) == 0 {
		t.Fatal("no progress reported")
	}
	last := progress.snapshots[len(progress.snapshots)-1]
	if last != (progressSnapshot{3, 2, 1, 0}) {
		t.Errorf("final snapshot = %+v", last)
	}
}

func TestScrapeRunSkipsMalformedMarkets(t *testing.T) {
	page := []gammaMarket{
		gammaTestMarket(1),
		{ID: "", Question: "orphan"},
		{ID: "9", Question: ""},
	}
	ts := newGammaServer(t, [][]gammaMarket{page})
	defer ts.Close()

	writer := &fakeMarketWriter{}
	svc := newTestScrapeService(writer, ts.URL, 10, 100, 50)

	result, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Fetched != 3 || result.Added != 1 || result.Failed != 2 {
		t.Errorf("result = %+v, want fetched=3 added=1 failed=2", result)
	}
}

func TestScrapeRunStorageFailureCountsFailed(t *testing.T) {
	page := []gammaMarket{gammaTestMarket(1), gammaTestMarket(2)}
	ts := newGammaServer(t, [][]gammaMarket{page})
	defer ts.Close()

	writer := &fakeMarketWriter{failIDs: map[string]bool{"2": true}}
	svc := newTestScrapeService(writer, ts.URL, 10, 100, 50)

	result, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Added != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want added=1 failed=1", result)
	}
}

func TestScrapeRunStopsAtMaxMarkets(t *testing.T) {
	pages := [][]gammaMarket{
		{gammaTestMarket(1), gammaTestMarket(2)},
		{gammaTestMarket(3), gammaTestMarket(4)},
	}
	ts := newGammaServer(t, pages)
	defer ts.Close()

	writer := &fakeMarketWriter{}
	svc := newTestScrapeService(writer, ts.URL, 2, 3, 50)

	result, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Fetched != 3 {
		t.Errorf("fetched = %d, want 3 (capped)", result.Fetched)
	}
}

func TestScrapeRunFetchErrorAborts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer ts.Close()

	svc := newTestScrapeService(&fakeMarketWriter{}, ts.URL, 10, 100, 50)

	result, err := svc.Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error when the market API is down")
	}
	if result == nil {
		t.Fatal("partial result should still be returned")
	}
}

func TestDecodeStringList(t *testing.T) {
	testCases := []struct {
		in   string
		want int
	}{
		{`["Yes","No"]`, 2},
		{``, 0},
		{`not json`, 0},
		{`[]`, 0},
	}
	for _, tc := range testCases {
		if got := decodeStringList(tc.in); len(got) != tc.want {
			t.Errorf("decodeStringList(%q) len = %d, want %d", tc.in, len(got), tc.want)
		}
	}
}
