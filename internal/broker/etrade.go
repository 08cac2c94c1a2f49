// Package broker provides brokerage API clients for reading account data and
// managing exit orders. It includes the E*TRADE REST client implementation
// and a circuit breaker wrapper.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/google/uuid"

	"github.com/optlens/optlens/internal/models"
)

// APIError represents an API error with status code and response body
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// Order terms and sessions used for exit orders.
const (
	orderTermGTC         = "GOOD_UNTIL_CANCEL"
	marketSessionRegular = "REGULAR"
)

// EtradeAPI is a client for the E*TRADE Accounts and Orders REST API. All
// requests are signed with OAuth 1.0a using the consumer and access token
// pair established during login.
type EtradeAPI struct {
	client  *http.Client
	baseURL string
	sandbox bool
	now     func() time.Time
}

// NewEtradeAPI creates a client from a consumer key pair and an access token
// pair. The HTTP client it builds signs every request with OAuth 1.0a.
func NewEtradeAPI(consumerKey, consumerSecret, accessToken, accessSecret string, sandbox bool) *EtradeAPI {
	cfg := oauth1.NewConfig(consumerKey, consumerSecret)
	token := oauth1.NewToken(accessToken, accessSecret)
	client := cfg.Client(oauth1.NoContext, token)
	client.Timeout = 15 * time.Second

	baseURL := "https://api.etrade.com"
	if sandbox {
		baseURL = "https://apisb.etrade.com"
	}

	return &EtradeAPI{
		client:  client,
		baseURL: baseURL,
		sandbox: sandbox,
		now:     time.Now,
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (e *EtradeAPI) WithHTTPClient(c *http.Client) *EtradeAPI {
	if c != nil {
		e.client = c
	}
	return e
}

// WithBaseURL allows overriding the API base URL (tests).
func (e *EtradeAPI) WithBaseURL(baseURL string) *EtradeAPI {
	if baseURL != "" {
		e.baseURL = strings.TrimRight(baseURL, "/")
	}
	return e
}

// WithClock allows overriding the time source used for expiry math (tests).
func (e *EtradeAPI) WithClock(now func() time.Time) *EtradeAPI {
	if now != nil {
		e.now = now
	}
	return e
}

// ============ API Response Structures ============

// E*TRADE returns a bare object instead of a one-element array for single
// items, so every repeated element decodes through oneOrMany.
type oneOrMany[T any] []T

func (s *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

// Account is one brokerage account visible to the authenticated user.
type Account struct {
	AccountID       string `json:"accountId"`
	AccountIDKey    string `json:"accountIdKey"`
	AccountName     string `json:"accountName"`
	AccountDesc     string `json:"accountDesc"`
	AccountType     string `json:"accountType"`
	AccountMode     string `json:"accountMode"`
	AccountStatus   string `json:"accountStatus"`
	InstitutionType string `json:"institutionType"`
}

type accountListResponse struct {
	AccountListResponse struct {
		Accounts struct {
			Account oneOrMany[Account] `json:"Account"`
		} `json:"Accounts"`
	} `json:"AccountListResponse"`
}

type rawProduct struct {
	Symbol       string   `json:"symbol"`
	SecurityType string   `json:"securityType"`
	CallPut      string   `json:"callPut"`
	StrikePrice  *float64 `json:"strikePrice"`
	ExpiryYear   *int     `json:"expiryYear"`
	ExpiryMonth  *int     `json:"expiryMonth"`
	ExpiryDay    *int     `json:"expiryDay"`
}

type rawQuick struct {
	LastTrade *float64 `json:"lastTrade"`
	Change    *float64 `json:"change"`
	ChangePct *float64 `json:"changePct"`
}

type rawComplete struct {
	Delta          *float64 `json:"delta"`
	Gamma          *float64 `json:"gamma"`
	Theta          *float64 `json:"theta"`
	Vega           *float64 `json:"vega"`
	Rho            *float64 `json:"rho"`
	IVPct          *float64 `json:"ivPct"`
	IntrinsicValue *float64 `json:"intrinsicValue"`
	Premium        *float64 `json:"premium"`
	OpenInterest   *float64 `json:"openInterest"`
	CostPerShare   *float64 `json:"costPerShare"`
}

type rawPosition struct {
	Product           rawProduct  `json:"Product"`
	Quick             rawQuick    `json:"Quick"`
	Complete          rawComplete `json:"Complete"`
	SymbolDescription string      `json:"symbolDescription"`
	Quantity          float64     `json:"quantity"`
	PricePaid         float64     `json:"pricePaid"`
	MarketValue       float64     `json:"marketValue"`
	TotalCost         *float64    `json:"totalCost"`
	DaysGain          *float64    `json:"daysGain"`
	TotalGain         *float64    `json:"totalGain"`
	TotalGainPct      float64     `json:"totalGainPct"`
	PctOfPortfolio    float64     `json:"pctOfPortfolio"`
	DateAcquired      *int64      `json:"dateAcquired"`
}

type accountPortfolio struct {
	Position oneOrMany[rawPosition] `json:"Position"`
}

type portfolioResponse struct {
	PortfolioResponse struct {
		AccountPortfolio oneOrMany[accountPortfolio] `json:"AccountPortfolio"`
	} `json:"PortfolioResponse"`
}

type rawInstrument struct {
	Product             rawProduct `json:"Product"`
	SymbolDescription   string     `json:"symbolDescription"`
	OrderedQuantity     float64    `json:"orderedQuantity"`
	FilledQuantity      float64    `json:"filledQuantity"`
	OrderAction         string     `json:"orderAction"`
	Bid                 *float64   `json:"bid"`
	Ask                 *float64   `json:"ask"`
	LastPrice           *float64   `json:"lastprice"`
	EstimatedCommission *float64   `json:"estimatedCommission"`
}

type rawOrderDetail struct {
	LimitPrice    *float64                 `json:"limitPrice"`
	StopPrice     *float64                 `json:"stopPrice"`
	PriceType     string                   `json:"priceType"`
	OrderTerm     string                   `json:"orderTerm"`
	MarketSession string                   `json:"marketSession"`
	PlacedTime    *int64                   `json:"placedTime"`
	NetPrice      *float64                 `json:"netPrice"`
	NetBid        *float64                 `json:"netBid"`
	NetAsk        *float64                 `json:"netAsk"`
	Status        string                   `json:"status"`
	AllOrNone     bool                     `json:"allOrNone"`
	Instrument    oneOrMany[rawInstrument] `json:"Instrument"`
}

type rawOrder struct {
	OrderID     int64                     `json:"orderId"`
	OrderType   string                    `json:"orderType"`
	OrderDetail oneOrMany[rawOrderDetail] `json:"OrderDetail"`
}

type ordersResponse struct {
	OrdersResponse struct {
		Order oneOrMany[rawOrder] `json:"Order"`
	} `json:"OrdersResponse"`
}

// Balance holds the account balance fields the dashboard renders.
type Balance struct {
	AccountID   string `json:"accountId"`
	AccountType string `json:"accountType"`
	Computed    struct {
		CashBuyingPower   float64 `json:"cashBuyingPower"`
		MarginBuyingPower float64 `json:"marginBuyingPower"`
		CashBalance       float64 `json:"cashBalance"`
		RealTimeValues    struct {
			TotalAccountValue float64 `json:"totalAccountValue"`
			NetMv             float64 `json:"netMv"`
			NetMvLong         float64 `json:"netMvLong"`
			NetMvShort        float64 `json:"netMvShort"`
		} `json:"RealTimeValues"`
	} `json:"Computed"`
}

type balanceResponse struct {
	BalanceResponse Balance `json:"BalanceResponse"`
}

// ============ Order Placement Structures ============

// ExitOrderRequest describes a single-leg limit exit order. ExpiryDate,
// CallPut and StrikePrice apply to options only.
type ExitOrderRequest struct {
	Symbol       string  `json:"symbol"`
	SecurityType string  `json:"securityType"`
	OrderAction  string  `json:"orderAction"`
	Quantity     int     `json:"quantity"`
	LimitPrice   float64 `json:"limitPrice"`
	ExpiryDate   string  `json:"expiryDate,omitempty"` // YYYY-MM-DD
	CallPut      string  `json:"callPut,omitempty"`
	StrikePrice  float64 `json:"strikePrice,omitempty"`
}

// SpreadLeg is one leg of a multi-leg spread exit order.
type SpreadLeg struct {
	Symbol      string  `json:"symbol"`
	CallPut     string  `json:"callPut"`
	ExpiryDate  string  `json:"expiryDate"` // YYYY-MM-DD
	StrikePrice float64 `json:"strikePrice"`
	OrderAction string  `json:"orderAction"`
	Quantity    int     `json:"quantity"`
}

// SpreadOrderRequest describes a multi-leg spread exit order priced as a
// net debit or net credit.
type SpreadOrderRequest struct {
	Legs       []SpreadLeg `json:"legs"`
	LimitPrice float64     `json:"limitPrice"`
	PriceType  string      `json:"priceType"` // NET_DEBIT or NET_CREDIT
}

// OrderConfirmation reports the broker-assigned id of a placed order.
type OrderConfirmation struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
}

type orderProduct struct {
	SecurityType string  `json:"securityType"`
	Symbol       string  `json:"symbol"`
	CallPut      string  `json:"callPut,omitempty"`
	ExpiryDay    int     `json:"expiryDay,omitempty"`
	ExpiryMonth  int     `json:"expiryMonth,omitempty"`
	ExpiryYear   int     `json:"expiryYear,omitempty"`
	StrikePrice  float64 `json:"strikePrice,omitempty"`
}

type orderInstrument struct {
	Product      orderProduct `json:"Product"`
	OrderAction  string       `json:"orderAction"`
	QuantityType string       `json:"quantityType"`
	Quantity     int          `json:"quantity"`
}

type orderBody struct {
	AllOrNone     bool              `json:"allOrNone"`
	PriceType     string            `json:"priceType"`
	LimitPrice    float64           `json:"limitPrice"`
	OrderTerm     string            `json:"orderTerm"`
	MarketSession string            `json:"marketSession"`
	Instrument    []orderInstrument `json:"Instrument"`
}

type previewRequest struct {
	PreviewOrderRequest struct {
		OrderType     string    `json:"orderType"`
		ClientOrderID string    `json:"clientOrderId"`
		Order         orderBody `json:"Order"`
	} `json:"PreviewOrderRequest"`
}

type previewIDs struct {
	PreviewID int64 `json:"previewId"`
}

type previewResponse struct {
	PreviewOrderResponse struct {
		PreviewIDs oneOrMany[previewIDs] `json:"PreviewIds"`
	} `json:"PreviewOrderResponse"`
}

type placeRequest struct {
	PlaceOrderRequest struct {
		OrderType     string     `json:"orderType"`
		ClientOrderID string     `json:"clientOrderId"`
		Order         orderBody  `json:"Order"`
		PreviewIDs    previewIDs `json:"PreviewIds"`
	} `json:"PlaceOrderRequest"`
}

type cancelRequest struct {
	CancelOrderRequest struct {
		OrderID int64 `json:"orderId"`
	} `json:"CancelOrderRequest"`
}

// ============ API Methods ============

// ListAccounts retrieves all brokerage accounts for the authenticated user.
func (e *EtradeAPI) ListAccounts(ctx context.Context) ([]Account, error) {
	endpoint := e.baseURL + "/v1/accounts/list"

	var response accountListResponse
	if err := e.doJSON(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return []Account(response.AccountListResponse.Accounts.Account), nil
}

// GetPositions retrieves the portfolio for an account and normalizes each
// line into the flat position record the engine consumes.
func (e *EtradeAPI) GetPositions(ctx context.Context, accountIDKey string) ([]models.Position, error) {
	params := url.Values{}
	params.Set("view", "COMPLETE")
	params.Set("totalsRequired", "true")
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/portfolio?%s", e.baseURL, accountIDKey, params.Encode())

	var response portfolioResponse
	if err := e.doJSON(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	now := e.now()
	var positions []models.Position
	for _, portfolio := range response.PortfolioResponse.AccountPortfolio {
		for _, raw := range portfolio.Position {
			positions = append(positions, normalizePosition(raw, now))
		}
	}
	return positions, nil
}

// GetOpenOrders retrieves open orders for an account. Each priced order
// detail becomes one Order with its instrument legs grouped; details without
// a limit price and instruments without a symbol are skipped.
func (e *EtradeAPI) GetOpenOrders(ctx context.Context, accountIDKey string) ([]models.Order, error) {
	params := url.Values{}
	params.Set("status", "OPEN")
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/orders?%s", e.baseURL, accountIDKey, params.Encode())

	var response ordersResponse
	if err := e.doJSON(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	var orders []models.Order
	for _, raw := range response.OrdersResponse.Order {
		for _, detail := range raw.OrderDetail {
			if detail.LimitPrice == nil {
				continue
			}
			var legs []models.OrderLeg
			for _, inst := range detail.Instrument {
				if inst.Product.Symbol == "" {
					continue
				}
				legs = append(legs, models.OrderLeg{
					Symbol:              inst.Product.Symbol,
					BaseSymbol:          baseSymbolOf(inst.Product.Symbol, inst.Product.SecurityType),
					SymbolDescription:   inst.SymbolDescription,
					OrderedQuantity:     int(math.Round(inst.OrderedQuantity)),
					FilledQuantity:      int(math.Round(inst.FilledQuantity)),
					OrderAction:         inst.OrderAction,
					StrikePrice:         inst.Product.StrikePrice,
					CallPut:             inst.Product.CallPut,
					ExpiryYear:          inst.Product.ExpiryYear,
					ExpiryMonth:         inst.Product.ExpiryMonth,
					ExpiryDay:           inst.Product.ExpiryDay,
					Bid:                 inst.Bid,
					Ask:                 inst.Ask,
					LastPrice:           inst.LastPrice,
					EstimatedCommission: inst.EstimatedCommission,
				})
			}
			if len(legs) == 0 {
				continue
			}
			orders = append(orders, models.Order{
				OrderID:       raw.OrderID,
				OrderType:     raw.OrderType,
				LimitPrice:    *detail.LimitPrice,
				StopPrice:     detail.StopPrice,
				PriceType:     detail.PriceType,
				OrderTerm:     detail.OrderTerm,
				MarketSession: detail.MarketSession,
				PlacedTime:    detail.PlacedTime,
				NetPrice:      detail.NetPrice,
				NetBid:        detail.NetBid,
				NetAsk:        detail.NetAsk,
				Status:        detail.Status,
				AllOrNone:     detail.AllOrNone,
				BaseSymbol:    legs[0].BaseSymbol,
				Legs:          legs,
			})
		}
	}
	return orders, nil
}

// GetBalance retrieves real-time balance data for an account.
func (e *EtradeAPI) GetBalance(ctx context.Context, accountIDKey string) (*Balance, error) {
	params := url.Values{}
	params.Set("instType", "BROKERAGE")
	params.Set("realTimeNAV", "true")
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/balance?%s", e.baseURL, accountIDKey, params.Encode())

	var response balanceResponse
	if err := e.doJSON(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &response.BalanceResponse, nil
}

// PlaceExitOrder places a single-leg limit GTC exit order, previewing first
// as the order API requires.
func (e *EtradeAPI) PlaceExitOrder(ctx context.Context, accountIDKey string, req ExitOrderRequest) (*OrderConfirmation, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity for order: %d, quantity must be greater than zero", req.Quantity)
	}

	product := orderProduct{
		SecurityType: req.SecurityType,
		Symbol:       req.Symbol,
	}
	orderType := "EQ"
	if req.SecurityType == models.SecurityOption {
		expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry date %q: %w", req.ExpiryDate, err)
		}
		orderType = "OPTN"
		product.CallPut = req.CallPut
		product.ExpiryYear = expiry.Year()
		product.ExpiryMonth = int(expiry.Month())
		product.ExpiryDay = expiry.Day()
		product.StrikePrice = req.StrikePrice
		// E*TRADE wants the option root in the symbol field
		product.Symbol = baseSymbolOf(req.Symbol, req.SecurityType)
	}

	body := orderBody{
		AllOrNone:     false,
		PriceType:     models.PriceTypeLimit,
		LimitPrice:    req.LimitPrice,
		OrderTerm:     orderTermGTC,
		MarketSession: marketSessionRegular,
		Instrument: []orderInstrument{{
			Product:      product,
			OrderAction:  req.OrderAction,
			QuantityType: "QUANTITY",
			Quantity:     req.Quantity,
		}},
	}

	return e.previewAndPlace(ctx, accountIDKey, orderType, body)
}

// PlaceSpreadExitOrder places a multi-leg spread exit order priced as
// NET_DEBIT or NET_CREDIT, previewing first.
func (e *EtradeAPI) PlaceSpreadExitOrder(ctx context.Context, accountIDKey string, req SpreadOrderRequest) (*OrderConfirmation, error) {
	if len(req.Legs) == 0 {
		return nil, fmt.Errorf("spread order requires at least one leg")
	}
	if req.PriceType != models.PriceTypeNetDebit && req.PriceType != models.PriceTypeNetCredit {
		return nil, fmt.Errorf("invalid spread price type: %q", req.PriceType)
	}

	instruments := make([]orderInstrument, 0, len(req.Legs))
	for _, leg := range req.Legs {
		if leg.Quantity <= 0 {
			return nil, fmt.Errorf("invalid quantity for leg %s: %d", leg.Symbol, leg.Quantity)
		}
		expiry, err := time.Parse("2006-01-02", leg.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry date %q for leg %s: %w", leg.ExpiryDate, leg.Symbol, err)
		}
		instruments = append(instruments, orderInstrument{
			Product: orderProduct{
				SecurityType: models.SecurityOption,
				Symbol:       leg.Symbol,
				CallPut:      leg.CallPut,
				ExpiryDay:    expiry.Day(),
				ExpiryMonth:  int(expiry.Month()),
				ExpiryYear:   expiry.Year(),
				StrikePrice:  leg.StrikePrice,
			},
			OrderAction:  leg.OrderAction,
			QuantityType: "QUANTITY",
			Quantity:     leg.Quantity,
		})
	}

	body := orderBody{
		AllOrNone:     false,
		PriceType:     req.PriceType,
		LimitPrice:    req.LimitPrice,
		OrderTerm:     orderTermGTC,
		MarketSession: marketSessionRegular,
		Instrument:    instruments,
	}

	return e.previewAndPlace(ctx, accountIDKey, "SPREADS", body)
}

// previewAndPlace runs the two-step order flow: preview, then place with the
// returned preview id.
func (e *EtradeAPI) previewAndPlace(ctx context.Context, accountIDKey, orderType string, body orderBody) (*OrderConfirmation, error) {
	clientOrderID := newClientOrderID()

	var preview previewRequest
	preview.PreviewOrderRequest.OrderType = orderType
	preview.PreviewOrderRequest.ClientOrderID = clientOrderID
	preview.PreviewOrderRequest.Order = body

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/orders/preview", e.baseURL, accountIDKey)
	var previewResp previewResponse
	if err := e.doJSON(ctx, http.MethodPost, endpoint, preview, &previewResp); err != nil {
		return nil, fmt.Errorf("order preview failed: %w", err)
	}

	ids := previewResp.PreviewOrderResponse.PreviewIDs
	if len(ids) == 0 {
		return nil, fmt.Errorf("order preview returned no preview id")
	}

	var place placeRequest
	place.PlaceOrderRequest.OrderType = orderType
	place.PlaceOrderRequest.ClientOrderID = clientOrderID
	place.PlaceOrderRequest.Order = body
	place.PlaceOrderRequest.PreviewIDs = ids[0]

	endpoint = fmt.Sprintf("%s/v1/accounts/%s/orders/place", e.baseURL, accountIDKey)
	var placeResp struct {
		PlaceOrderResponse struct {
			OrderIDs oneOrMany[struct {
				OrderID int64 `json:"orderId"`
			}] `json:"OrderIds"`
		} `json:"PlaceOrderResponse"`
	}
	if err := e.doJSON(ctx, http.MethodPost, endpoint, place, &placeResp); err != nil {
		return nil, fmt.Errorf("order place failed: %w", err)
	}

	confirmation := &OrderConfirmation{ClientOrderID: clientOrderID}
	if ids := placeResp.PlaceOrderResponse.OrderIDs; len(ids) > 0 {
		confirmation.OrderID = ids[0].OrderID
	}
	return confirmation, nil
}

// CancelOrder cancels an open order. The API returns an empty body on a
// successful cancel, which is treated as success.
func (e *EtradeAPI) CancelOrder(ctx context.Context, accountIDKey string, orderID int64) error {
	var req cancelRequest
	req.CancelOrderRequest.OrderID = orderID

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/orders/cancel", e.baseURL, accountIDKey)
	return e.doJSON(ctx, http.MethodPut, endpoint, req, nil)
}

// ============ Normalization Helpers ============

// normalizePosition flattens one raw portfolio line into the engine's
// position record, applying the fallbacks the API leaves to the caller.
func normalizePosition(raw rawPosition, now time.Time) models.Position {
	quantity := int(math.Round(raw.Quantity))

	totalCost := raw.Quantity * raw.PricePaid
	if raw.TotalCost != nil {
		totalCost = *raw.TotalCost
	}
	totalGain := raw.MarketValue - totalCost
	if raw.TotalGain != nil {
		totalGain = *raw.TotalGain
	}
	daysGain := f64Or(raw.Quick.Change, 0)
	if raw.DaysGain != nil {
		daysGain = *raw.DaysGain
	}
	costPerShare := raw.PricePaid
	if raw.Complete.CostPerShare != nil {
		costPerShare = *raw.Complete.CostPerShare
	}

	description := raw.SymbolDescription
	if description == "" {
		description = raw.Product.SecurityType
	}

	return models.Position{
		Symbol:       raw.Product.Symbol,
		BaseSymbol:   baseSymbolOf(raw.Product.Symbol, raw.Product.SecurityType),
		Description:  description,
		SecurityType: raw.Product.SecurityType,
		CallPut:      raw.Product.CallPut,
		StrikePrice:  raw.Product.StrikePrice,

		Quantity:       quantity,
		PricePaid:      raw.PricePaid,
		MarketValue:    raw.MarketValue,
		TotalCost:      totalCost,
		DaysGain:       daysGain,
		DayGainPct:     f64Or(raw.Quick.ChangePct, 0),
		TotalGain:      totalGain,
		TotalGainPct:   raw.TotalGainPct,
		LastPrice:      f64Or(raw.Quick.LastTrade, 0),
		PctOfPortfolio: raw.PctOfPortfolio,
		CostPerShare:   costPerShare,

		DTE:   models.CalcDTE(raw.Product.ExpiryYear, raw.Product.ExpiryMonth, raw.Product.ExpiryDay, now),
		Delta: raw.Complete.Delta,
		Gamma: raw.Complete.Gamma,
		Theta: raw.Complete.Theta,
		Vega:  raw.Complete.Vega,
		Rho:   raw.Complete.Rho,
		IV:    raw.Complete.IVPct,

		IntrinsicValue: raw.Complete.IntrinsicValue,
		Premium:        raw.Complete.Premium,
		OpenInterest:   raw.Complete.OpenInterest,

		DateAcquired: raw.DateAcquired,
		ExpiryYear:   raw.Product.ExpiryYear,
		ExpiryMonth:  raw.Product.ExpiryMonth,
		ExpiryDay:    raw.Product.ExpiryDay,
	}
}

// baseSymbolOf extracts the underlying symbol. OCC option symbols start with
// the root ticker followed by date and strike digits, so the leading alpha
// run is the root.
func baseSymbolOf(symbol, securityType string) string {
	if securityType != models.SecurityOption {
		return symbol
	}
	i := 0
	for i < len(symbol) && isAlpha(symbol[i]) {
		i++
	}
	if i == 0 {
		return symbol
	}
	return symbol[:i]
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func f64Or(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

// newClientOrderID generates a 20-character hex id, the longest the order
// API accepts for clientOrderId.
func newClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// doJSON makes an HTTP request with a JSON body and decodes a JSON response.
// A nil out skips decoding; an empty response body is not an error.
func (e *EtradeAPI) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "optlens/1.0 (+etrade)")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> failed to read error body", method, endpoint)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> %s", method, endpoint, string(raw))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}
