package zaif

import (
	"encoding/json"
	"fmt"
)

// depthResponse is the public GET /api/1/depth payload. Levels arrive as
// [price, amount] pairs.
type depthResponse struct {
	Asks [][2]float64 `json:"asks"`
	Bids [][2]float64 `json:"bids"`
}

// tapiEnvelope is the private endpoint envelope: success is 1 with a return
// object, or 0 with an error string.
type tapiEnvelope struct {
	Success int             `json:"success"`
	Return  json.RawMessage `json:"return"`
	Error   string          `json:"error"`
}

// getInfoReturn carries account funds keyed by currency code.
type getInfoReturn struct {
	Funds map[string]float64 `json:"funds"`
}

// tradeReturn is the response to the trade method.
type tradeReturn struct {
	OrderID  jsonID  `json:"order_id"`
	Received float64 `json:"received"`
	Remains  float64 `json:"remains"`
}

// cancelReturn is the response to the cancel_order method.
type cancelReturn struct {
	OrderID jsonID `json:"order_id"`
}

// activeOrdersReturn maps order ID to its open details.
type activeOrdersReturn map[string]activeOrder

type activeOrder struct {
	CurrencyPair string  `json:"currency_pair"`
	Action       string  `json:"action"`
	Amount       float64 `json:"amount"`
	Price        float64 `json:"price"`
	Timestamp    jsonID  `json:"timestamp"`
}

// jsonID tolerates the venue emitting IDs as either numbers or strings.
type jsonID string

func (v *jsonID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = jsonID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("zaif: id is neither string nor number: %w", err)
	}
	*v = jsonID(n.String())
	return nil
}

func (v jsonID) String() string { return string(v) }
