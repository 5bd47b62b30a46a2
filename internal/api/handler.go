package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
	"monitor-precos/internal/tracker"
	"monitor-precos/pkg/logger"
)

// ProductService são as operações de cadastro expostas pela API
type ProductService interface {
	Create(ctx context.Context, req tracker.CreateRequest) (*models.TrackedProduct, error)
	Get(ctx context.Context, id int64) (*models.TrackedProduct, error)
	List(ctx context.Context) ([]models.TrackedProduct, error)
	Delete(ctx context.Context, id int64) error
	CheckNow(ctx context.Context, id int64) (models.CheckOutcome, error)
	UpdateTarget(ctx context.Context, id int64, target decimal.Decimal, rearm bool) (*models.TrackedProduct, error)
	Rearm(ctx context.Context, id int64) (*models.TrackedProduct, error)
}

// CycleRunner dispara um ciclo completo sob demanda
type CycleRunner interface {
	RunNow(ctx context.Context) (*models.CycleReport, error)
}

// Pinger verifica a conexão com o banco
type Pinger interface {
	Ping(ctx context.Context) error
}

type ProductHandler struct {
	service ProductService
	cycles  CycleRunner
	db      Pinger
	logger  logger.Logger
}

func NewProductHandler(service ProductService, cycles CycleRunner, db Pinger, logger logger.Logger) *ProductHandler {
	return &ProductHandler{service: service, cycles: cycles, db: db, logger: logger}
}

func (h *ProductHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, _ := ToHTTPResponse(err)
	if code >= http.StatusInternalServerError {
		h.logger.Errorf(err, "%s %s", r.Method, r.URL.Path)
	} else {
		h.logger.Warnf("%d %s %s: %s", code, r.Method, r.URL.Path, err.Error())
	}
	WriteError(w, err)
}

func (h *ProductHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req tracker.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusCreated, toProductResponse(p))
}

func (h *ProductHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	WriteSuccess(w, http.StatusOK, out)
}

func (h *ProductHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) checkProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := h.service.CheckNow(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, toCheckResponse(out))
}

func (h *ProductHandler) rearmProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.service.Rearm(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, toProductResponse(p))
}

type updateTargetRequest struct {
	TargetPrice decimal.Decimal `json:"target_price"`
	Rearm       bool            `json:"rearm"`
}

func (h *ProductHandler) updateTarget(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req updateTargetRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.service.UpdateTarget(r.Context(), id, req.TargetPrice, req.Rearm)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) runCycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.cycles.RunNow(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, http.StatusOK, cycleResponse{
		ID:         report.ID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Total:      report.Total,
		Succeeded:  report.Succeeded,
		Failed:     report.Failed,
		Skipped:    report.Skipped,
		Fired:      report.Fired,
	})
}

func (h *ProductHandler) health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Errorf(err, "Health check falhou")
			WriteSuccess(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
