package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

const (
	aliexpressBaseURL     = "https://api-sg.aliexpress.com"
	aliexpressMaxPageSize = 200
)

// AliExpressConnector talks to the AliExpress open platform. Every call is a
// GET against the /sync gateway with a method name and a signature computed
// over the sorted parameter set.
type AliExpressConnector struct {
	transport *transport
	now       func() time.Time
}

func NewAliExpress(t *transport) *AliExpressConnector {
	return &AliExpressConnector{transport: t, now: time.Now}
}

func (c *AliExpressConnector) signedParams(auth Auth, method string, extra map[string]string) (url.Values, error) {
	if auth.APIKey == "" || auth.APISecret == "" {
		return nil, &AuthError{Supplier: enums.SupplierTypeAliExpress, Message: "api key and secret are required"}
	}

	params := url.Values{}
	params.Set("app_key", auth.APIKey)
	params.Set("method", method)
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("format", "json")
	params.Set("v", "2.0")
	params.Set("sign_method", "sha256")
	for key, value := range extra {
		params.Set(key, value)
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var source strings.Builder
	for _, key := range keys {
		source.WriteString(key)
		source.WriteString(params.Get(key))
	}

	mac := hmac.New(sha256.New, []byte(auth.APISecret))
	mac.Write([]byte(source.String()))
	params.Set("sign", strings.ToUpper(hex.EncodeToString(mac.Sum(nil))))
	return params, nil
}

func (c *AliExpressConnector) call(ctx context.Context, auth Auth, method string, extra map[string]string) (map[string]any, error) {
	return c.transport.doJSON(ctx, enums.SupplierTypeAliExpress, func() (*http.Request, error) {
		params, err := c.signedParams(auth, method, extra)
		if err != nil {
			return nil, err
		}

		target, err := url.Parse(baseURLOverride(auth.Config, aliexpressBaseURL) + "/sync")
		if err != nil {
			return nil, err
		}
		target.RawQuery = params.Encode()

		return http.NewRequest(http.MethodGet, target.String(), nil)
	})
}

func (c *AliExpressConnector) result(data map[string]any) (map[string]any, error) {
	result := objectValue(data, "result")
	if result == nil {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeAliExpress, Reason: "response missing result"}
	}
	return result, nil
}

func (c *AliExpressConnector) FetchProducts(ctx context.Context, auth Auth, opts FetchOptions) ([]NormalizedProduct, error) {
	if testMode(auth.Config) {
		return aliexpressTestProducts(opts.Limit), nil
	}

	pageSize := opts.Limit
	if pageSize <= 0 || pageSize > aliexpressMaxPageSize {
		pageSize = aliexpressMaxPageSize
	}
	extra := map[string]string{"page_size": strconv.Itoa(pageSize)}
	if opts.Category != "" {
		extra["category_id"] = opts.Category
	}

	data, err := c.call(ctx, auth, "aliexpress.ds.product.get", extra)
	if err != nil {
		return nil, err
	}
	result, err := c.result(data)
	if err != nil {
		return nil, err
	}

	rawProducts, ok := objectList(result, "products")
	if !ok {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeAliExpress, Reason: "products payload is invalid"}
	}

	products := make([]NormalizedProduct, 0, len(rawProducts))
	for _, raw := range rawProducts {
		products = append(products, normalizeAliExpressProduct(raw))
	}
	return products, nil
}

func normalizeAliExpressProduct(raw map[string]any) NormalizedProduct {
	rawVariants, _ := objectList(raw, "sku_infos")
	variants := make([]NormalizedVariant, 0, len(rawVariants))
	for _, v := range rawVariants {
		variants = append(variants, NormalizedVariant{
			ExternalVariantID: stringValue(v, "sku_id"),
			SKU:               stringValue(v, "sku_attr"),
			Name:              stringValue(v, "sku_name"),
			Price:             decimal.NewFromFloat(floatValue(v, "sku_price")),
			Stock:             intValue(v, "sku_stock"),
		})
	}
	return NormalizedProduct{
		ExternalID: stringValue(raw, "product_id", "item_id"),
		Title:      stringValue(raw, "subject"),
		Price:      decimal.NewFromFloat(floatValue(raw, "sale_price", "price")),
		Stock:      intValue(raw, "available_stock", "stock"),
		Images:     stringList(raw, "images"),
		Variants:   variants,
	}
}

func aliexpressTestProducts(limit int) []NormalizedProduct {
	if limit > 5 || limit <= 0 {
		limit = 5
	}
	products := make([]NormalizedProduct, 0, limit)
	for i := 0; i < limit; i++ {
		products = append(products, NormalizedProduct{
			ExternalID: fmt.Sprintf("ali-test-%d", i),
			Title:      fmt.Sprintf("AliExpress Test Product %d", i),
			Price:      decimal.NewFromFloat(2.5 + float64(i)),
			Stock:      30,
		})
	}
	return products
}

func (c *AliExpressConnector) PlaceOrder(ctx context.Context, auth Auth, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if testMode(auth.Config) {
		return &PlaceOrderResult{ExternalOrderID: "ALI-TEST-ORDER", Status: "placed"}, nil
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	data, err := c.call(ctx, auth, "aliexpress.trade.order.create", map[string]string{
		"param_order_request": string(encoded),
	})
	if err != nil {
		return nil, err
	}
	result, err := c.result(data)
	if err != nil {
		return nil, err
	}

	orderID := stringValue(result, "order_id")
	if orderID == "" {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeAliExpress, Reason: "order response missing order_id"}
	}

	status := stringValue(result, "status")
	if status == "" {
		status = "placed"
	}
	return &PlaceOrderResult{ExternalOrderID: orderID, Status: status, Raw: types.JSONMap(data)}, nil
}

func (c *AliExpressConnector) GetOrderStatus(ctx context.Context, auth Auth, externalOrderID string) (*OrderStatusResult, error) {
	data, err := c.call(ctx, auth, "aliexpress.trade.order.get", map[string]string{
		"order_id": externalOrderID,
	})
	if err != nil {
		return nil, err
	}
	result, err := c.result(data)
	if err != nil {
		return nil, err
	}

	status := stringValue(result, "order_status")
	if status == "" {
		return nil, &MalformedResponseError{Supplier: enums.SupplierTypeAliExpress, Reason: "order status missing order_status"}
	}

	return &OrderStatusResult{
		ExternalOrderID: externalOrderID,
		Status:          status,
		TrackingNumber:  optionalString(result, "tracking_number"),
		Courier:         optionalString(result, "logistics_provider"),
		Raw:             types.JSONMap(data),
	}, nil
}

func (c *AliExpressConnector) GetTrackingInfo(ctx context.Context, auth Auth, trackingNumber string, courier string) (*TrackingInfo, error) {
	extra := map[string]string{"tracking_number": trackingNumber}
	if courier != "" {
		extra["logistics_provider"] = courier
	}

	data, err := c.call(ctx, auth, "aliexpress.logistics.tracking.get", extra)
	if err != nil {
		return nil, err
	}
	result, err := c.result(data)
	if err != nil {
		return nil, err
	}
	return parseTrackingPayload(enums.SupplierTypeAliExpress, result)
}
