package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kwhite/polytrack/internal/domain"
	"github.com/kwhite/polytrack/internal/repository"
	"github.com/kwhite/polytrack/internal/service"
	"gorm.io/gorm"
)

type fakeMarketStore struct {
	markets map[int64]*domain.Market
	nextID  int64
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{markets: map[int64]*domain.Market{}}
}

func (f *fakeMarketStore) Create(ctx context.Context, market *domain.Market) error {
	f.nextID++
	market.ID = f.nextID
	f.markets[market.ID] = market
	return nil
}

func (f *fakeMarketStore) Update(ctx context.Context, market *domain.Market) error {
	f.markets[market.ID] = market
	return nil
}

func (f *fakeMarketStore) GetByID(ctx context.Context, id int64) (*domain.Market, error) {
	market, ok := f.markets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return market, nil
}

func (f *fakeMarketStore) List(ctx context.Context, q repository.MarketQuery) ([]domain.Market, int64, error) {
	var out []domain.Market
	for _, m := range f.markets {
		if q.ActiveOnly && !m.IsActive {
			continue
		}
		out = append(out, *m)
	}
	return out, int64(len(out)), nil
}

func (f *fakeMarketStore) Delete(ctx context.Context, id int64) error {
	if _, ok := f.markets[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.markets, id)
	return nil
}

func newMarketRouter(store *fakeMarketStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewMarketHandler(service.NewMarketService(store))
	r.GET("/markets", h.ListMarkets)
	r.GET("/markets/:id", h.GetMarket)
	r.POST("/markets", h.CreateMarket)
	r.PUT("/markets/:id", h.UpdateMarket)
	r.DELETE("/markets/:id", h.DeleteMarket)
	return r
}

func TestCreateAndGetMarket(t *testing.T) {
	store := newFakeMarketStore()
	r := newMarketRouter(store)

	body := `{"polymarket_id":"pm-1","question":"Will it rain tomorrow?","outcomes":["Yes","No"]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/markets", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var created struct {
		Market domain.Market `json:"market"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Market.ID == 0 {
		t.Fatal("created market has no id")
	}
	if !created.Market.IsActive {
		t.Error("market should default to active")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/markets/1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", w.Code)
	}
}

func TestCreateMarketValidation(t *testing.T) {
	r := newMarketRouter(newFakeMarketStore())

	// Missing required question.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/markets", bytes.NewBufferString(`{"polymarket_id":"pm-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing question", w.Code)
	}
}

func TestGetMarketNotFound(t *testing.T) {
	r := newMarketRouter(newFakeMarketStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/markets/99", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/markets/not-a-number", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-numeric id", w.Code)
	}
}

func TestUpdateMarketPartial(t *testing.T) {
	store := newFakeMarketStore()
	store.Create(context.Background(), &domain.Market{
		PolymarketID: "pm-1",
		Question:     "Original question?",
		Volume:       10,
		IsActive:     true,
	})
	r := newMarketRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/markets/1", bytes.NewBufferString(`{"volume": 99.5}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200: %s", w.Code, w.Body.String())
	}

	updated := store.markets[1]
	if updated.Volume != 99.5 {
		t.Errorf("volume = %v, want 99.5", updated.Volume)
	}
	if updated.Question != "Original question?" {
		t.Error("unset fields must not be overwritten")
	}
}

func TestDeleteMarket(t *testing.T) {
	store := newFakeMarketStore()
	store.Create(context.Background(), &domain.Market{PolymarketID: "pm-1", Question: "q"})
	r := newMarketRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/markets/1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/markets/1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestListMarketsEnvelope(t *testing.T) {
	store := newFakeMarketStore()
	store.Create(context.Background(), &domain.Market{PolymarketID: "pm-1", Question: "q1", IsActive: true})
	store.Create(context.Background(), &domain.Market{PolymarketID: "pm-2", Question: "q2", IsActive: false})
	r := newMarketRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/markets?page=1&page_size=10", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Markets  []domain.Market `json:"markets"`
		Total    int64           `json:"total"`
		Page     int             `json:"page"`
		PageSize int             `json:"page_size"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if resp.Total != 2 || resp.Page != 1 || resp.PageSize != 10 {
		t.Errorf("envelope = total %d page %d page_size %d", resp.Total, resp.Page, resp.PageSize)
	}
}
