package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
	inventory "github.com/dmehra2102/stock-order-system/internal/inventory/domain"
	"github.com/dmehra2102/stock-order-system/internal/order/application"
	"github.com/dmehra2102/stock-order-system/internal/order/domain"
	paymentapp "github.com/dmehra2102/stock-order-system/internal/payment/application"
	payment "github.com/dmehra2102/stock-order-system/internal/payment/domain"
)

const (
	headerUserID = "X-User-ID"
	headerRole   = "X-User-Role"
)

type Products interface {
	Product(ctx context.Context, productID string) (inventory.Product, error)
}

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	payments *paymentapp.Service
	products Products
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, payments *paymentapp.Service, products Products) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		payments: payments,
		products: products,
		tracer:   otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.traced)

	r.Get("/products/{id}", h.getProduct)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}/receiver", h.changeReceiver)
		r.Post("/{id}/cancel", h.cancelOrder)
		r.Post("/{id}/cancel-request", h.requestCancel)
		r.Post("/{id}/confirm", h.confirmPurchase)
		r.Post("/{id}/refunds", h.requestRefund)
		r.Post("/{id}/payment", h.pay)
		r.Get("/{id}/payments", h.listPayments)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminOnly)
		r.Post("/orders/{id}/status", h.changeStatus)
		r.Post("/orders/{id}/cancel-decision", h.decideCancel)
		r.Post("/orders/{id}/refund/approve", h.approveRefund)
		r.Post("/refunds/{id}/reject", h.rejectRefund)
		r.Get("/refunds", h.listRefunds)
	})

	return r
}

// traced continues an incoming W3C trace and opens a server span per request.
func (h *Handler) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := h.tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r).Admin {
			writeError(w, nil, apperr.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actorFrom trusts identity headers set by the gateway in front of the
// service.
func actorFrom(r *http.Request) application.Actor {
	return application.Actor{
		UserID: r.Header.Get(headerUserID),
		Admin:  r.Header.Get(headerRole) == "admin",
	}
}

type receiverReq struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Mobile  string `json:"mobile"`
}

func (r receiverReq) domain() domain.Receiver {
	return domain.Receiver{Name: r.Name, Address: r.Address, Mobile: r.Mobile}
}

type createOrderReq struct {
	ProductID string      `json:"product_id"`
	Quantity  int64       `json:"quantity"`
	Receiver  receiverReq `json:"receiver"`
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type refundReq struct {
	Type   domain.RefundType `json:"type"`
	Reason string            `json:"reason"`
}

type statusReq struct {
	Status domain.OrderStatus `json:"status"`
}

type decisionReq struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

type payReq struct {
	Method payment.Method `json:"method"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFrom(r)
	id, err := h.service.CreateOrder(r.Context(), actor.UserID, req.ProductID, req.Receiver.domain(), req.Quantity)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"order_id": id})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	owner := actor.UserID
	if q := r.URL.Query().Get("owner_id"); q != "" && actor.Admin {
		owner = q
	}
	if owner == "" {
		writeError(w, nil, apperr.ErrUnauthorized)
		return
	}
	orders, err := h.service.ListOrders(r.Context(), owner, pageFrom(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) changeReceiver(w http.ResponseWriter, r *http.Request) {
	var req receiverReq
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, h.service.ChangeReceiver(r.Context(), chi.URLParam(r, "id"), actorFrom(r), req.domain()))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req reasonReq
	if !h.decodeOptional(w, r, &req) {
		return
	}
	h.respond(w, h.service.CancelOrder(r.Context(), chi.URLParam(r, "id"), actorFrom(r), req.Reason))
}

func (h *Handler) requestCancel(w http.ResponseWriter, r *http.Request) {
	var req reasonReq
	if !h.decodeOptional(w, r, &req) {
		return
	}
	h.respond(w, h.service.RequestCancel(r.Context(), chi.URLParam(r, "id"), actorFrom(r), req.Reason))
}

func (h *Handler) confirmPurchase(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.service.ConfirmPurchase(r.Context(), chi.URLParam(r, "id"), actorFrom(r)))
}

func (h *Handler) requestRefund(w http.ResponseWriter, r *http.Request) {
	var req refundReq
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.service.RequestRefund(r.Context(), chi.URLParam(r, "id"), actorFrom(r), req.Type, req.Reason)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"refund_id": id})
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var req payReq
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.payments.Pay(r.Context(), chi.URLParam(r, "id"), actorFrom(r), req.Method)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(p))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.GetOrder(r.Context(), id, actorFrom(r)); err != nil {
		writeError(w, h.log, err)
		return
	}
	payments, err := h.payments.Payments(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, productDTO{
		ID: p.ID, Name: p.Name, PriceCents: p.PriceCents, Available: p.Available, Status: string(p.Status),
	})
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, h.service.ChangeOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status))
}

func (h *Handler) decideCancel(w http.ResponseWriter, r *http.Request) {
	var req decisionReq
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, h.service.DecideCancel(r.Context(), chi.URLParam(r, "id"), req.Approve, req.Reason))
}

func (h *Handler) approveRefund(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.service.ApproveRefund(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) rejectRefund(w http.ResponseWriter, r *http.Request) {
	var req reasonReq
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w, h.service.RejectRefund(r.Context(), chi.URLParam(r, "id"), req.Reason))
}

func (h *Handler) listRefunds(w http.ResponseWriter, r *http.Request) {
	refunds, err := h.service.ListRefunds(r.Context(), pageFrom(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]refundDTO, 0, len(refunds))
	for _, rf := range refunds {
		out = append(out, toRefundDTO(rf))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, nil, apperr.Wrap(apperr.ErrInvalidParameter, "invalid body"))
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return h.decode(w, r, v)
}

func (h *Handler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pageFrom(r *http.Request) application.Page {
	number, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return application.Page{Number: number, Size: size}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:    http.StatusNotFound,
	apperr.KindConflict:    http.StatusConflict,
	apperr.KindForbidden:   http.StatusForbidden,
	apperr.KindInvalid:     http.StatusBadRequest,
	apperr.KindUnavailable: http.StatusServiceUnavailable,
	apperr.KindInternal:    http.StatusInternalServerError,
}

// writeError maps err to its stable code. Only the taxonomy message is sent;
// unknown errors are logged and reported as ERROR_SYSTEM.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	e := apperr.From(err)
	if e == apperr.ErrSystem && log != nil && !errors.Is(err, apperr.ErrSystem) {
		log.Error("request failed", "err", err)
	}
	if apperr.Retryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, statusByKind[e.Kind], errorBody{Code: e.Code, Message: e.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
