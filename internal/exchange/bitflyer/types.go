package bitflyer

// boardResponse is the GET /v1/board payload.
type boardResponse struct {
	MidPrice float64      `json:"mid_price"`
	Bids     []boardLevel `json:"bids"`
	Asks     []boardLevel `json:"asks"`
}

type boardLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// balanceEntry is one element of GET /v1/me/getbalance.
type balanceEntry struct {
	CurrencyCode string  `json:"currency_code"`
	Amount       float64 `json:"amount"`
	Available    float64 `json:"available"`
}

// commissionResponse is the GET /v1/me/gettradingcommission payload.
type commissionResponse struct {
	CommissionRate float64 `json:"commission_rate"`
}

// sendChildOrderRequest is the POST /v1/me/sendchildorder body.
type sendChildOrderRequest struct {
	ProductCode    string  `json:"product_code"`
	ChildOrderType string  `json:"child_order_type"` // LIMIT or MARKET
	Side           string  `json:"side"`             // BUY or SELL
	Price          float64 `json:"price,omitempty"`
	Size           float64 `json:"size"`
	MinuteToExpire int     `json:"minute_to_expire,omitempty"`
	TimeInForce    string  `json:"time_in_force,omitempty"`
}

// sendChildOrderResponse carries the acceptance ID used to address the order
// in later calls.
type sendChildOrderResponse struct {
	ChildOrderAcceptanceID string `json:"child_order_acceptance_id"`
}

// cancelChildOrderRequest is the POST /v1/me/cancelchildorder body.
type cancelChildOrderRequest struct {
	ProductCode            string `json:"product_code"`
	ChildOrderAcceptanceID string `json:"child_order_acceptance_id"`
}

// childOrder is one element of GET /v1/me/getchildorders.
type childOrder struct {
	ID                     int64   `json:"id"`
	ChildOrderID           string  `json:"child_order_id"`
	ChildOrderAcceptanceID string  `json:"child_order_acceptance_id"`
	ProductCode            string  `json:"product_code"`
	Side                   string  `json:"side"`
	ChildOrderType         string  `json:"child_order_type"`
	Price                  float64 `json:"price"`
	Size                   float64 `json:"size"`
	ChildOrderState        string  `json:"child_order_state"`
	ExecutedSize           float64 `json:"executed_size"`
}

// apiError is the venue's error payload shape.
type apiError struct {
	Status       int    `json:"status"`
	ErrorMessage string `json:"error_message"`
}
