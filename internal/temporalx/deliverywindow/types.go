package deliverywindow

import "time"

const (
	WorkflowName         = "order_delivery_window"
	ActivityAutoComplete = "order_auto_complete"
)

type Input struct {
	OrderID  string    `json:"order_id"`
	Deadline time.Time `json:"deadline"`
}

type Result struct {
	OrderID   string `json:"order_id"`
	Completed bool   `json:"completed"`
	Status    string `json:"status,omitempty"`
}

// WorkflowID is stable per order so a repeated schedule joins the running timer.
func WorkflowID(orderID string) string { return "order-delivery-window-" + orderID }
