package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/api/responses"
	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

type ordersStore interface {
	GetOrderWithDetails(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type OrdersController struct {
	store ordersStore
	logg  *logger.Logger
}

func NewOrdersController(store ordersStore, logg *logger.Logger) (*OrdersController, error) {
	if store == nil {
		return nil, errors.New("orders controller: store is required")
	}
	if logg == nil {
		return nil, errors.New("orders controller: logger is required")
	}
	return &OrdersController{store: store, logg: logg}, nil
}

type orderItemDTO struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Qty       int       `json:"qty"`
	UnitPrice string    `json:"unit_price"`
}

type shipmentEventDTO struct {
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	EventTime   time.Time `json:"event_time"`
}

type shipmentDTO struct {
	ID             uuid.UUID          `json:"id"`
	Status         string             `json:"status"`
	TrackingNumber *string            `json:"tracking_number,omitempty"`
	Courier        *string            `json:"courier,omitempty"`
	ShippedAt      *time.Time         `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time         `json:"delivered_at,omitempty"`
	Events         []shipmentEventDTO `json:"events"`
}

type fulfillmentDTO struct {
	ID           uuid.UUID    `json:"id"`
	SupplierName string       `json:"supplier_name,omitempty"`
	Status       string       `json:"status"`
	Shipment     *shipmentDTO `json:"shipment,omitempty"`
}

type orderDTO struct {
	ID            uuid.UUID        `json:"id"`
	Status        string           `json:"status"`
	PaymentStatus string           `json:"payment_status"`
	TotalAmount   string           `json:"total_amount"`
	Currency      string           `json:"currency"`
	PaidAt        *time.Time       `json:"paid_at,omitempty"`
	Items         []orderItemDTO   `json:"items"`
	Fulfillments  []fulfillmentDTO `json:"fulfillments"`
	CreatedAt     time.Time        `json:"created_at"`
}

// GetOrder returns one order with its items, per-supplier fulfillment
// state, and tracking history.
func (c *OrdersController) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "orderId must be a valid uuid"))
		return
	}

	ctx := c.logg.WithOrderID(r.Context(), orderID.String())
	order, err := c.store.GetOrderWithDetails(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order"))
		return
	}

	responses.WriteSuccess(w, toOrderDTO(order))
}

func toOrderDTO(order *models.Order) orderDTO {
	dto := orderDTO{
		ID:            order.ID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount.StringFixed(2),
		Currency:      order.Currency,
		PaidAt:        order.PaidAt,
		Items:         make([]orderItemDTO, 0, len(order.Items)),
		Fulfillments:  make([]fulfillmentDTO, 0, len(order.FulfillmentRecords)),
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, orderItemDTO{
			ID:        item.ID,
			Title:     item.Title,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}
	for _, record := range order.FulfillmentRecords {
		fdto := fulfillmentDTO{
			ID:     record.ID,
			Status: string(record.Status),
		}
		if record.Supplier != nil {
			fdto.SupplierName = record.Supplier.Name
		}
		if record.Shipment != nil {
			fdto.Shipment = toShipmentDTO(record.Shipment)
		}
		dto.Fulfillments = append(dto.Fulfillments, fdto)
	}
	return dto
}

func toShipmentDTO(shipment *models.Shipment) *shipmentDTO {
	dto := &shipmentDTO{
		ID:             shipment.ID,
		Status:         string(shipment.Status),
		TrackingNumber: shipment.TrackingNumber,
		Courier:        shipment.Courier,
		ShippedAt:      shipment.ShippedAt,
		DeliveredAt:    shipment.DeliveredAt,
		Events:         make([]shipmentEventDTO, 0, len(shipment.Events)),
	}
	for _, event := range shipment.Events {
		dto.Events = append(dto.Events, shipmentEventDTO{
			Status:      event.Status,
			Description: event.Description,
			Location:    event.Location,
			EventTime:   event.EventTime,
		})
	}
	return dto
}
