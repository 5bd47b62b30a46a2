package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
	"monitor-precos/internal/scheduler"
	"monitor-precos/internal/tracker"
	"monitor-precos/pkg/e"
	"monitor-precos/pkg/logger"
)

type fakeService struct {
	products map[int64]models.TrackedProduct
	created  []tracker.CreateRequest
	checked  []int64
}

func (f *fakeService) Create(_ context.Context, req tracker.CreateRequest) (*models.TrackedProduct, error) {
	if req.RawURLOrID == "" {
		return nil, e.Validation("URL ou ID do produto é obrigatório")
	}
	f.created = append(f.created, req)
	p := models.TrackedProduct{
		ID:          int64(len(f.products) + 1),
		Platform:    req.Platform,
		ProductID:   req.RawURLOrID,
		TargetPrice: req.TargetPrice,
		Currency:    "USD",
	}
	f.products[p.ID] = p
	return &p, nil
}

func (f *fakeService) Get(_ context.Context, id int64) (*models.TrackedProduct, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", e.ErrProductNotFound, id)
	}
	return &p, nil
}

func (f *fakeService) List(_ context.Context) ([]models.TrackedProduct, error) {
	out := make([]models.TrackedProduct, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeService) Delete(ctx context.Context, id int64) error {
	if _, err := f.Get(ctx, id); err != nil {
		return err
	}
	delete(f.products, id)
	return nil
}

func (f *fakeService) CheckNow(ctx context.Context, id int64) (models.CheckOutcome, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return models.CheckOutcome{}, err
	}
	f.checked = append(f.checked, id)
	return models.CheckOutcome{
		ProductID: id,
		Result: models.PriceResult{
			Outcome:  models.OutcomeOK,
			Price:    decimal.NewNullDecimal(decimal.RequireFromString("79.99")),
			Currency: "USD",
		},
		Decision: models.DecisionFire,
		Fired:    true,
		Notifications: []models.NotificationOutcome{
			{Channel: models.ChannelEmail, Recipient: "a@example.com", Success: true},
		},
	}, nil
}

func (f *fakeService) UpdateTarget(ctx context.Context, id int64, target decimal.Decimal, rearm bool) (*models.TrackedProduct, error) {
	if !target.IsPositive() {
		return nil, e.Validation("preço alvo deve ser positivo")
	}
	p, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.TargetPrice = target
	if rearm {
		p.AlertSent = false
	}
	f.products[id] = *p
	return p, nil
}

func (f *fakeService) Rearm(ctx context.Context, id int64) (*models.TrackedProduct, error) {
	p, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return f.UpdateTarget(ctx, id, p.TargetPrice, true)
}

type fakeCycles struct {
	err error
}

func (f fakeCycles) RunNow(_ context.Context) (*models.CycleReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now()
	return &models.CycleReport{ID: "c1", StartedAt: now, FinishedAt: now, Total: 2, Succeeded: 2}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, cycles CycleRunner) (*httptest.Server, *fakeService) {
	t.Helper()
	svc := &fakeService{products: map[int64]models.TrackedProduct{
		1: {ID: 1, Platform: models.PlatformAmazon, ProductID: "B08N5WRWNW", TargetPrice: decimal.RequireFromString("80"), Currency: "USD", AlertSent: true},
	}}
	mux := chi.NewRouter()
	NewRouter(mux, logger.NewNop()).Init(NewProductHandler(svc, cycles, fakePinger{}, logger.NewNop()))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateProduct(t *testing.T) {
	srv, svc := newTestServer(t, fakeCycles{})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/products",
		`{"platform":"ebay","url":"334455","target_price":"19.90","notify_email":"a@example.com"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var got productResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.TargetPrice != "19.90" || got.CurrentPrice != nil {
		t.Errorf("response = %+v", got)
	}
	if len(svc.created) != 1 || svc.created[0].NotifyEmail != "a@example.com" {
		t.Errorf("service received %+v", svc.created)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t, fakeCycles{err: scheduler.ErrCycleRunning})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"validation", http.MethodPost, "/api/v1/products", `{"platform":"ebay","target_price":"1"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/v1/products", `{"platform":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/products", `{"foo":1}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/v1/products/abc", "", http.StatusBadRequest},
		{"missing", http.MethodGet, "/api/v1/products/99", "", http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/v1/products/99", "", http.StatusNotFound},
		{"check missing", http.MethodPost, "/api/v1/products/99/check", "", http.StatusNotFound},
		{"zero target", http.MethodPut, "/api/v1/products/1/target", `{"target_price":"0"}`, http.StatusBadRequest},
		{"cycle running", http.MethodPost, "/api/v1/cycles", "", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.want || body.Message == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestCheckAndRearm(t *testing.T) {
	srv, svc := newTestServer(t, fakeCycles{})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/products/1/check", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check status = %d", resp.StatusCode)
	}
	var check checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&check); err != nil {
		t.Fatal(err)
	}
	if !check.Fired || check.Price == nil || *check.Price != "79.99" || len(check.Notifications) != 1 {
		t.Errorf("check response = %+v", check)
	}
	if len(svc.checked) != 1 {
		t.Errorf("CheckNow calls = %d", len(svc.checked))
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/products/1/rearm", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rearm status = %d", resp.StatusCode)
	}
	var p productResponse
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.AlertSent {
		t.Error("rearm response still has alert_sent=true")
	}
}

func TestDeleteAndList(t *testing.T) {
	srv, _ := newTestServer(t, fakeCycles{})

	resp := do(t, http.MethodDelete, srv.URL+"/api/v1/products/1", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/products", "")
	var list []productResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("list after delete = %+v", list)
	}
}

func TestRunCycleAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, fakeCycles{})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/cycles", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cycle status = %d", resp.StatusCode)
	}
	var report cycleResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.ID != "c1" || report.Total != 2 {
		t.Errorf("report = %+v", report)
	}

	resp = do(t, http.MethodGet, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}
