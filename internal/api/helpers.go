package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"monitor-precos/internal/models"
	"monitor-precos/internal/scheduler"
	"monitor-precos/pkg/e"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{Code: code, Message: message}
}

// ToHTTPResponse converte o erro no status e na mensagem visíveis ao cliente
func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, e.ErrProductNotFound):
		return http.StatusNotFound, e.ErrProductNotFound.Error()
	case errors.Is(err, scheduler.ErrCycleRunning):
		return http.StatusConflict, scheduler.ErrCycleRunning.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, e.Validation("id inválido: %q", raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return e.Validation("corpo JSON inválido: %v", err)
	}
	return nil
}

type productResponse struct {
	ID            int64                       `json:"id"`
	Platform      models.Platform             `json:"platform"`
	ProductID     string                      `json:"product_id"`
	ProductURL    string                      `json:"product_url"`
	Title         string                      `json:"title,omitempty"`
	TargetPrice   string                      `json:"target_price"`
	Currency      string                      `json:"currency"`
	CurrentPrice  *string                     `json:"current_price"`
	LastCheckedAt *time.Time                  `json:"last_checked_at"`
	AlertSent     bool                        `json:"alert_sent"`
	NotifyEmail   string                      `json:"notify_email,omitempty"`
	Targets       []models.NotificationTarget `json:"targets,omitempty"`
	LastError     string                      `json:"last_error,omitempty"`
	ErrorCount    int                         `json:"consecutive_errors"`
	Disabled      bool                        `json:"disabled"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func toProductResponse(p *models.TrackedProduct) productResponse {
	resp := productResponse{
		ID:            p.ID,
		Platform:      p.Platform,
		ProductID:     p.ProductID,
		ProductURL:    p.ProductURL,
		Title:         p.Title,
		TargetPrice:   p.TargetPrice.StringFixed(2),
		Currency:      p.Currency,
		LastCheckedAt: p.LastCheckedAt,
		AlertSent:     p.AlertSent,
		NotifyEmail:   p.NotifyEmail,
		Targets:       p.Targets,
		LastError:     p.LastError,
		ErrorCount:    p.ConsecutiveErrors,
		Disabled:      p.Disabled,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.CurrentPrice.Valid {
		price := p.CurrentPrice.Decimal.StringFixed(2)
		resp.CurrentPrice = &price
	}
	return resp
}

type notificationResponse struct {
	Channel   models.Channel `json:"channel"`
	Recipient string         `json:"recipient"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

type checkResponse struct {
	ProductID     int64                  `json:"product_id"`
	Outcome       models.Outcome         `json:"outcome"`
	ErrorKind     models.ErrorKind       `json:"error_kind,omitempty"`
	Price         *string                `json:"price"`
	Currency      string                 `json:"currency,omitempty"`
	Placeholder   bool                   `json:"placeholder,omitempty"`
	Decision      models.Decision        `json:"decision"`
	Fired         bool                   `json:"fired"`
	Notifications []notificationResponse `json:"notifications,omitempty"`
}

func toCheckResponse(o models.CheckOutcome) checkResponse {
	resp := checkResponse{
		ProductID:   o.ProductID,
		Outcome:     o.Result.Outcome,
		ErrorKind:   o.Result.ErrorKind,
		Currency:    o.Result.Currency,
		Placeholder: o.Result.Placeholder,
		Decision:    o.Decision,
		Fired:       o.Fired,
	}
	if o.Result.Price.Valid {
		price := o.Result.Price.Decimal.StringFixed(2)
		resp.Price = &price
	}
	for _, n := range o.Notifications {
		resp.Notifications = append(resp.Notifications, notificationResponse(n))
	}
	return resp
}

type cycleResponse struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Fired      int       `json:"fired"`
}
