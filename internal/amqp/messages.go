package amqp

import (
	"encoding/json"
	"time"
)

// PaymentReceivedMessage announces that a buyer's payment for pooled
// produce has landed. The sales system publishes it; the redistribution
// worker registers the collective payment from it.
type PaymentReceivedMessage struct {
	SaleID        string    `json:"sale_id"`
	CooperativeID string    `json:"cooperative_id"`
	AmountUnits   int64     `json:"amount_units"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	Buyer         string    `json:"buyer"`
	InvoiceNumber string    `json:"invoice_number"`
	Timestamp     time.Time `json:"timestamp"`
}

func (m *PaymentReceivedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PaymentReceivedMessageFromJSON(data []byte) (*PaymentReceivedMessage, error) {
	var msg PaymentReceivedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// PayoutResultMessage reports the outcome of a processing run so the
// sales system can follow up with members.
type PayoutResultMessage struct {
	PaymentID string    `json:"payment_id"`
	Status    string    `json:"status"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPayoutResultMessage(paymentID, status string, completed, failed int) *PayoutResultMessage {
	return &PayoutResultMessage{
		PaymentID: paymentID,
		Status:    status,
		Completed: completed,
		Failed:    failed,
		Timestamp: time.Now(),
	}
}

func (m *PayoutResultMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PayoutResultMessageFromJSON(data []byte) (*PayoutResultMessage, error) {
	var msg PayoutResultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
