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

const amazonBaseURL = "https://sellingpartnerapi-na.amazon.com"

// AmazonConnector talks to the Amazon selling-partner gateway. Requests
// carry the access key plus an HMAC-SHA256 signature of method, path, and
// timestamp.
type AmazonConnector struct {
	transport *transport
	now       func() time.Time
}

func NewAmazon(t *transport) *AmazonConnector {
	return &AmazonConnector{transport: t, now: time.Now}
}

func (c *AmazonConnector) signedRequest(auth Auth, method string, path string, query url.Values, body []byte) (*http.Request, error) {
	if auth.APIKey == "" || auth.APISecret == "" {
		return nil, &AuthError{Supplier: enums.SupplierTypeAmazon, Message: "api key and secret are required"}
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(auth.APISecret))
	fmt.Fprintf(mac, "%s\n%s\n%s", method, path, timestamp)

	target, err := url.Parse(baseURLOverride(auth.Config, amazonBaseURL) + path)
	if err != nil {
		return nil, err
	}
	target.RawQuery = query.Encode()

	var req *http.Request
	if body != nil {
		req, err = http.NewRequest(method, target.String(), bytes.NewReader(body))
	} else {
		req, err = http.NewRequest(method, target.String(), nil)
	}
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-AMZ-ACCESS-KEY", auth.APIKey)
	req.Header.Set("X-AMZ-TIMESTAMP", timestamp)
	req.Header.Set("X-AMZ-SIGNATURE", hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *AmazonConnector) FetchProducts(ctx context.Context, auth Auth, opts FetchOptions) ([]NormalizedProduct, error) {
	if testMode(auth.Config) {
		return amazonTestProducts(opts.Limit), nil
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(opts.Limit))
	if opts.Category != "" {
		query.Set("category", opts.Category)
	}

	data, err := c.transport.doJSON(ctx, enums.SupplierTypeAmazon, func() (*http.Request, error) {
		return c.signedRequest(auth, http.MethodGet, "/v1/catalog/items", query, nil)
	})
	if err != nil {
		return nil, err
	}

	rawProducts, ok := objectList(data, "items")
	if !ok {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeAmazon, Reason: "items payload is invalid"}
	}

	products := make([]NormalizedProduct, 0, len(rawProducts))
	for _, raw := range rawProducts {
		products = append(products, normalizeAmazonProduct(raw))
	}
	return products, nil
}

func normalizeAmazonProduct(raw map[string]any) NormalizedProduct {
	rawVariants, _ := objectList(raw, "variants")
	variants := make([]NormalizedVariant, 0, len(rawVariants))
	for _, v := range rawVariants {
		variants = append(variants, NormalizedVariant{
			ExternalVariantID: stringValue(v, "id"),
			SKU:               stringValue(v, "sku"),
			Name:              stringValue(v, "name"),
			Price:             decimal.NewFromFloat(floatValue(v, "price")),
			Stock:             intValue(v, "stock"),
		})
	}
	return NormalizedProduct{
		ExternalID: stringValue(raw, "external_id", "asin", "id"),
		Title:      stringValue(raw, "title"),
		Price:      decimal.NewFromFloat(floatValue(raw, "price")),
		Stock:      intValue(raw, "stock"),
		Images:     stringList(raw, "images"),
		Variants:   variants,
	}
}

func amazonTestProducts(limit int) []NormalizedProduct {
	if limit > 5 || limit <= 0 {
		limit = 5
	}
	products := make([]NormalizedProduct, 0, limit)
	for i := 0; i < limit; i++ {
		products = append(products, NormalizedProduct{
			ExternalID: fmt.Sprintf("amz-B0%07d", i+1),
			Title:      fmt.Sprintf("Amazon Test Product %d", i+1),
			Price:      decimal.NewFromFloat(29.99 + float64(i)*10),
			Stock:      1000 - i*50,
		})
	}
	return products
}

func (c *AmazonConnector) PlaceOrder(ctx context.Context, auth Auth, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if testMode(auth.Config) {
		return &PlaceOrderResult{ExternalOrderID: "AMZ-TEST-ORDER", Status: "placed"}, nil
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	data, err := c.transport.doJSON(ctx, enums.SupplierTypeAmazon, func() (*http.Request, error) {
		return c.signedRequest(auth, http.MethodPost, "/v1/orders", url.Values{}, encoded)
	})
	if err != nil {
		return nil, err
	}

	orderID := stringValue(data, "order_id")
	if orderID == "" {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeAmazon, Reason: "order response missing order_id"}
	}

	status := stringValue(data, "status")
	if status == "" {
		status = "placed"
	}
	return &PlaceOrderResult{ExternalOrderID: orderID, Status: status, Raw: types.JSONMap(data)}, nil
}

func (c *AmazonConnector) GetOrderStatus(ctx context.Context, auth Auth, externalOrderID string) (*OrderStatusResult, error) {
	data, err := c.transport.doJSON(ctx, enums.SupplierTypeAmazon, func() (*http.Request, error) {
		return c.signedRequest(auth, http.MethodGet, "/v1/orders/"+url.PathEscape(externalOrderID), url.Values{}, nil)
	})
	if err != nil {
		return nil, err
	}

	status := stringValue(data, "status")
	if status == "" {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeAmazon, Reason: "order status response missing status"}
	}

	return &OrderStatusResult{
		ExternalOrderID: externalOrderID,
		Status:          status,
		TrackingNumber:  optionalString(data, "tracking_number"),
		Courier:         optionalString(data, "courier"),
		Raw:             types.JSONMap(data),
	}, nil
}

func (c *AmazonConnector) GetTrackingInfo(ctx context.Context, auth Auth, trackingNumber string, courier string) (*TrackingInfo, error) {
	query := url.Values{}
	if courier != "" {
		query.Set("courier", courier)
	}

	data, err := c.transport.doJSON(ctx, enums.SupplierTypeAmazon, func() (*http.Request, error) {
		return c.signedRequest(auth, http.MethodGet, "/v1/tracking/"+url.PathEscape(trackingNumber), query, nil)
	})
	if err != nil {
		return nil, err
	}
	return parseTrackingPayload(enums.SupplierTypeAmazon, data)
}
