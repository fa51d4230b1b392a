package view

// OrderRef identifies an order the backend already created. Once a checkout
// attempt holds one it is carried onto every screen that follows.
type OrderRef struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	ArrivalCode string `json:"arrival_code"`
}

func (r *OrderRef) Clone() *OrderRef {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
