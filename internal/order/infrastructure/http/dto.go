package http

import (
	"time"

	"github.com/dmehra2102/stock-order-system/internal/order/domain"
	payment "github.com/dmehra2102/stock-order-system/internal/payment/domain"
)

type lineItemDTO struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type orderDTO struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Receiver      receiverReq   `json:"receiver"`
	Status        string        `json:"status"`
	PaymentID     string        `json:"payment_id,omitempty"`
	Reasons       []string      `json:"reasons,omitempty"`
	TotalCents    int64         `json:"total_cents"`
	Items         []lineItemDTO `json:"items"`
	CreatedAt     time.Time     `json:"created_at"`
	DeliveryDueAt time.Time     `json:"delivery_due_at"`
}

func toOrderDTO(o domain.Order) orderDTO {
	items := make([]lineItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, lineItemDTO{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
	}
	return orderDTO{
		ID:            o.ID,
		OwnerID:       o.OwnerID,
		Receiver:      receiverReq{Name: o.Receiver.Name, Address: o.Receiver.Address, Mobile: o.Receiver.Mobile},
		Status:        string(o.Status),
		PaymentID:     o.PaymentID,
		Reasons:       o.Reasons,
		TotalCents:    o.TotalCents(),
		Items:         items,
		CreatedAt:     o.CreatedAt,
		DeliveryDueAt: o.DeliveryDueAt,
	}
}

type refundDTO struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason"`
	DecisionReason string    `json:"decision_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toRefundDTO(r domain.Refund) refundDTO {
	return refundDTO{
		ID: r.ID, OrderID: r.OrderID, Type: string(r.Type), Status: string(r.Status),
		Reason: r.Reason, DecisionReason: r.DecisionReason, CreatedAt: r.CreatedAt,
	}
}

type paymentDTO struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	OriginalCents    int64  `json:"original_cents"`
	DiscountCents    int64  `json:"discount_cents"`
	DeliveryFeeCents int64  `json:"delivery_fee_cents"`
	FinalCents       int64  `json:"final_cents"`
	Status           string `json:"status"`
}

func toPaymentDTO(p payment.Payment) paymentDTO {
	return paymentDTO{
		ID: p.ID, OrderID: p.OrderID, Method: string(p.Method), OriginalCents: p.OriginalCents,
		DiscountCents: p.DiscountCents, DeliveryFeeCents: p.DeliveryFeeCents, FinalCents: p.FinalCents,
		Status: string(p.Status),
	}
}

type productDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Available  int64  `json:"available"`
	Status     string `json:"status"`
}
