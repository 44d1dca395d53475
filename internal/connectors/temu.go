package connectors

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

const temuBaseURL = "https://openapi.temu.com"

// TemuConnector talks to the Temu open API. Requests are authenticated with
// HMAC-SHA256 over path, timestamp, and payload.
type TemuConnector struct {
	transport *transport
	now       func() time.Time
}

func NewTemu(t *transport) *TemuConnector {
	return &TemuConnector{transport: t, now: time.Now}
}

func (c *TemuConnector) signedHeaders(auth Auth, path string, payload []byte, timestamp string) (http.Header, error) {
	if auth.APIKey == "" || auth.APISecret == "" {
		return nil, &AuthError{Supplier: enums.SupplierTypeTemu, Message: "api key and secret are required"}
	}

	mac := hmac.New(sha256.New, []byte(auth.APISecret))
	fmt.Fprintf(mac, "%s\n%s\n", path, timestamp)
	mac.Write(payload)

	headers := http.Header{}
	headers.Set("X-TEMU-APP-KEY", auth.APIKey)
	headers.Set("X-TEMU-TIMESTAMP", timestamp)
	headers.Set("X-TEMU-SIGN", hex.EncodeToString(mac.Sum(nil)))
	headers.Set("Content-Type", "application/json")
	return headers, nil
}

func (c *TemuConnector) get(ctx context.Context, auth Auth, path string, query url.Values) (map[string]any, error) {
	return c.transport.doJSON(ctx, enums.SupplierTypeTemu, func() (*http.Request, error) {
		timestamp := strconv.FormatInt(c.now().Unix(), 10)
		headers, err := c.signedHeaders(auth, path, []byte(query.Encode()), timestamp)
		if err != nil {
			return nil, err
		}

		target, err := url.Parse(baseURLOverride(auth.Config, temuBaseURL) + path)
		if err != nil {
			return nil, err
		}
		target.RawQuery = query.Encode()

		req, err := http.NewRequest(http.MethodGet, target.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header = headers
		return req, nil
	})
}

func (c *TemuConnector) post(ctx context.Context, auth Auth, path string, body any) (map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.transport.doJSON(ctx, enums.SupplierTypeTemu, func() (*http.Request, error) {
		timestamp := strconv.FormatInt(c.now().Unix(), 10)
		headers, err := c.signedHeaders(auth, path, encoded, timestamp)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequest(http.MethodPost, baseURLOverride(auth.Config, temuBaseURL)+path, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header = headers
		return req, nil
	})
}

func (c *TemuConnector) FetchProducts(ctx context.Context, auth Auth, opts FetchOptions) ([]NormalizedProduct, error) {
	if testMode(auth.Config) {
		return temuTestProducts(opts.Limit), nil
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(opts.Limit))
	if opts.Category != "" {
		query.Set("category", opts.Category)
	}

	data, err := c.get(ctx, auth, "/v1/products", query)
	if err != nil {
		return nil, err
	}

	rawProducts, ok := objectList(data, "products")
	if !ok {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeTemu, Reason: "products payload is invalid"}
	}

	products := make([]NormalizedProduct, 0, len(rawProducts))
	for _, raw := range rawProducts {
		products = append(products, normalizeTemuProduct(raw))
	}
	return products, nil
}

func normalizeTemuProduct(raw map[string]any) NormalizedProduct {
	rawVariants, _ := objectList(raw, "variants")
	variants := make([]NormalizedVariant, 0, len(rawVariants))
	for _, v := range rawVariants {
		variants = append(variants, NormalizedVariant{
			ExternalVariantID: stringValue(v, "variant_id", "id"),
			SKU:               stringValue(v, "sku"),
			Name:              stringValue(v, "name"),
			Price:             decimal.NewFromFloat(floatValue(v, "price")),
			Stock:             intValue(v, "stock"),
		})
	}
	return NormalizedProduct{
		ExternalID: stringValue(raw, "product_id", "id"),
		Title:      stringValue(raw, "title"),
		Price:      decimal.NewFromFloat(floatValue(raw, "price")),
		Stock:      intValue(raw, "stock"),
		Images:     stringList(raw, "images"),
		Variants:   variants,
	}
}

func temuTestProducts(limit int) []NormalizedProduct {
	if limit > 5 || limit <= 0 {
		limit = 5
	}
	products := make([]NormalizedProduct, 0, limit)
	for i := 0; i < limit; i++ {
		products = append(products, NormalizedProduct{
			ExternalID: fmt.Sprintf("temu-test-%d", i),
			Title:      fmt.Sprintf("Temu Test Product %d", i),
			Price:      decimal.NewFromFloat(10.0 + float64(i)),
			Stock:      100,
		})
	}
	return products
}

func (c *TemuConnector) PlaceOrder(ctx context.Context, auth Auth, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if testMode(auth.Config) {
		return &PlaceOrderResult{ExternalOrderID: "TEMU-TEST-ORDER", Status: "placed"}, nil
	}

	data, err := c.post(ctx, auth, "/v1/orders", req)
	if err != nil {
		return nil, err
	}

	orderID := stringValue(data, "order_id")
	if orderID == "" {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeTemu, Reason: "order response missing order_id"}
	}

	status := stringValue(data, "status")
	if status == "" {
		status = "placed"
	}
	return &PlaceOrderResult{ExternalOrderID: orderID, Status: status, Raw: types.JSONMap(data)}, nil
}

func (c *TemuConnector) GetOrderStatus(ctx context.Context, auth Auth, externalOrderID string) (*OrderStatusResult, error) {
	data, err := c.get(ctx, auth, "/v1/orders/"+url.PathEscape(externalOrderID), url.Values{})
	if err != nil {
		return nil, err
	}

	status := stringValue(data, "status")
	if status == "" {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeTemu, Reason: "order status response missing status"}
	}

	return &OrderStatusResult{
		ExternalOrderID: externalOrderID,
		Status:          status,
		TrackingNumber:  optionalString(data, "tracking_number"),
		Courier:         optionalString(data, "courier"),
		Raw:             types.JSONMap(data),
	}, nil
}

func (c *TemuConnector) GetTrackingInfo(ctx context.Context, auth Auth, trackingNumber string, courier string) (*TrackingInfo, error) {
	query := url.Values{}
	if courier != "" {
		query.Set("courier", courier)
	}

	data, err := c.get(ctx, auth, "/v1/tracking/"+url.PathEscape(trackingNumber), query)
	if err != nil {
		return nil, err
	}
	return parseTrackingPayload(enums.SupplierTypeTemu, data)
}

// parseTrackingPayload decodes the shared tracking feed shape. Events with
// unparseable timestamps are dropped because the reconciler needs the time
// for deduplication.
func parseTrackingPayload(supplier enums.SupplierType, data map[string]any) (*TrackingInfo, error) {
	currentStatus := stringValue(data, "current_status")
	if currentStatus == "" {
		return nil, &MalformedResponseError{Supplier: supplier, Reason: "tracking response missing current_status"}
	}

	rawEvents, _ := objectList(data, "events")
	events := make([]TrackingEvent, 0, len(rawEvents))
	for _, raw := range rawEvents {
		eventTime, ok := timeValue(raw, "time")
		if !ok {
			continue
		}
		events = append(events, TrackingEvent{
			Status:      stringValue(raw, "status"),
			Description: stringValue(raw, "description"),
			Location:    stringValue(raw, "location"),
			Time:        eventTime,
		})
	}
	return &TrackingInfo{CurrentStatus: currentStatus, Events: events}, nil
}
