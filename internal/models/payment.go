package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how an order was settled
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "CASH"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentMomo       PaymentMethod = "MOMO"
	PaymentVNPay      PaymentMethod = "VNPAY"
	PaymentZaloPay    PaymentMethod = "ZALOPAY"
)

// ParsePaymentMethod converts a request string into a PaymentMethod or fails
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentMomo, PaymentVNPay, PaymentZaloPay:
		return m, nil
	default:
		return "", fmt.Errorf("paymentMethod must be one of: CASH, CREDIT_CARD, DEBIT_CARD, MOMO, VNPAY, ZALOPAY")
	}
}

// Payment settles exactly one order
type Payment struct {
	ID            int64           `json:"id" db:"id"`
	OrderID       int64           `json:"orderId" db:"order_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PaymentTime   time.Time       `json:"paymentTime" db:"payment_time"`
	PaymentMethod PaymentMethod   `json:"paymentMethod" db:"payment_method"`
	ReceiptNumber string          `json:"receiptNumber" db:"receipt_number"`
}

// PaymentRequest is the body of a payment call; the amount is always server-computed
type PaymentRequest struct {
	OrderID       int64  `json:"orderId"`
	PaymentMethod string `json:"paymentMethod"`
}
