package bittrex

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-kus/testex/internal/models"
	"github.com/m-kus/testex/pkg/address"
	"github.com/shopspring/decimal"
)

func parseQuantity(quantity string) (decimal.Decimal, error) {
	if quantity == "" {
		return decimal.Zero, newError(ErrQuantityNotProvided)
	}
	value, err := decimal.NewFromString(quantity)
	if err != nil {
		return decimal.Zero, newError(ErrQuantityInvalid)
	}
	return value, nil
}

func parseRate(rate string) (decimal.Decimal, error) {
	if rate == "" {
		return decimal.Zero, newError(ErrRateNotProvided)
	}
	value, err := decimal.NewFromString(rate)
	if err != nil {
		return decimal.Zero, newError(ErrRateInvalid)
	}
	return value, nil
}

func parseUUID(value string) (string, error) {
	if value == "" {
		return "", newError(ErrUUIDNotProvided)
	}
	if _, err := uuid.Parse(value); err != nil {
		return "", newError(ErrUUIDInvalid)
	}
	return value, nil
}

func parseAddress(addr, currency string) (string, error) {
	if addr == "" {
		return "", newError(ErrAddressNotProvided)
	}
	if !address.IsValid(addr, currency) {
		return "", newError(ErrAddressInvalid)
	}
	return addr, nil
}

// formatDatetime renders a timestamp the Bittrex way: ISO with truncated
// milliseconds, no zone designator.
func formatDatetime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000")
}

// The three order views drop distinct subsets of the canonical field set;
// each is its own struct so the wire shape is explicit.

// SingleOrderView is the account/getorder shape.
type SingleOrderView struct {
	AccountID                  *string         `json:"AccountId"`
	CancelInitiated            bool            `json:"CancelInitiated"`
	Closed                     *string         `json:"Closed"`
	CommissionPaid             decimal.Decimal `json:"CommissionPaid"`
	CommissionReserveRemaining decimal.Decimal `json:"CommissionReserveRemaining"`
	CommissionReserved         decimal.Decimal `json:"CommissionReserved"`
	Condition                  string          `json:"Condition"`
	ConditionTarget            *string         `json:"ConditionTarget"`
	Exchange                   string          `json:"Exchange"`
	ImmediateOrCancel          bool            `json:"ImmediateOrCancel"`
	IsConditional              bool            `json:"IsConditional"`
	IsOpen                     bool            `json:"IsOpen"`
	Limit                      decimal.Decimal `json:"Limit"`
	Opened                     string          `json:"Opened"`
	OrderUUID                  string          `json:"OrderUuid"`
	Price                      decimal.Decimal `json:"Price"`
	PricePerUnit               decimal.Decimal `json:"PricePerUnit"`
	Quantity                   decimal.Decimal `json:"Quantity"`
	QuantityRemaining          decimal.Decimal `json:"QuantityRemaining"`
	ReserveRemaining           decimal.Decimal `json:"ReserveRemaining"`
	Reserved                   decimal.Decimal `json:"Reserved"`
	Sentinel                   *string         `json:"Sentinel"`
	Type                       string          `json:"Type"`
}

// OpenOrderView is the market/getopenorders shape.
type OpenOrderView struct {
	CancelInitiated   bool            `json:"CancelInitiated"`
	Closed            *string         `json:"Closed"`
	CommissionPaid    decimal.Decimal `json:"CommissionPaid"`
	Condition         string          `json:"Condition"`
	ConditionTarget   *string         `json:"ConditionTarget"`
	Exchange          string          `json:"Exchange"`
	ImmediateOrCancel bool            `json:"ImmediateOrCancel"`
	IsConditional     bool            `json:"IsConditional"`
	Limit             decimal.Decimal `json:"Limit"`
	Opened            string          `json:"Opened"`
	OrderType         string          `json:"OrderType"`
	OrderUUID         string          `json:"OrderUuid"`
	Price             decimal.Decimal `json:"Price"`
	PricePerUnit      decimal.Decimal `json:"PricePerUnit"`
	Quantity          decimal.Decimal `json:"Quantity"`
	QuantityRemaining decimal.Decimal `json:"QuantityRemaining"`
	UUID              *string         `json:"Uuid"`
}

// HistoryOrderView is the account/getorderhistory shape.
type HistoryOrderView struct {
	Closed            *string         `json:"Closed"`
	Commission        decimal.Decimal `json:"Commission"`
	Condition         string          `json:"Condition"`
	ConditionTarget   *string         `json:"ConditionTarget"`
	Exchange          string          `json:"Exchange"`
	ImmediateOrCancel bool            `json:"ImmediateOrCancel"`
	IsConditional     bool            `json:"IsConditional"`
	Limit             decimal.Decimal `json:"Limit"`
	OrderType         string          `json:"OrderType"`
	OrderUUID         string          `json:"OrderUuid"`
	Price             decimal.Decimal `json:"Price"`
	PricePerUnit      decimal.Decimal `json:"PricePerUnit"`
	Quantity          decimal.Decimal `json:"Quantity"`
	QuantityRemaining decimal.Decimal `json:"QuantityRemaining"`
	TimeStamp         string          `json:"TimeStamp"`
}

func closedAt(order *models.Order) *string {
	if order.Status != models.OrderStatusClosed || order.UpdatedAt == nil {
		return nil
	}
	closed := formatDatetime(*order.UpdatedAt)
	return &closed
}

func commissionReserveRemaining(order *models.Order) decimal.Decimal {
	remaining := order.ReservedFee.Sub(order.Fee)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func formatSingleOrder(order *models.Order) SingleOrderView {
	return SingleOrderView{
		Closed:                     closedAt(order),
		CommissionPaid:             order.Fee,
		CommissionReserveRemaining: commissionReserveRemaining(order),
		CommissionReserved:         order.ReservedFee,
		Condition:                  "NONE",
		Exchange:                   order.Market,
		IsOpen:                     order.Status != models.OrderStatusClosed,
		Limit:                      order.Price,
		Opened:                     formatDatetime(order.CreatedAt),
		OrderUUID:                  order.ID,
		Price:                      order.Price,
		PricePerUnit:               order.AveragePrice,
		Quantity:                   order.Amount,
		QuantityRemaining:          order.RemainingAmount,
		ReserveRemaining:           order.Reserved.Sub(order.Total),
		Reserved:                   order.Reserved,
		Type:                       orderTypeOf(order.Direction),
	}
}

func formatOpenOrder(order *models.Order) OpenOrderView {
	return OpenOrderView{
		Closed:            closedAt(order),
		CommissionPaid:    order.Fee,
		Condition:         "NONE",
		Exchange:          order.Market,
		Limit:             order.Price,
		Opened:            formatDatetime(order.CreatedAt),
		OrderType:         orderTypeOf(order.Direction),
		OrderUUID:         order.ID,
		Price:             order.Price,
		PricePerUnit:      order.AveragePrice,
		Quantity:          order.Amount,
		QuantityRemaining: order.RemainingAmount,
	}
}

func formatHistoryOrder(order *models.Order) HistoryOrderView {
	return HistoryOrderView{
		Closed:            closedAt(order),
		Commission:        order.Fee,
		Condition:         "NONE",
		Exchange:          order.Market,
		Limit:             order.Price,
		OrderType:         orderTypeOf(order.Direction),
		OrderUUID:         order.ID,
		Price:             order.Price,
		PricePerUnit:      order.AveragePrice,
		Quantity:          order.Amount,
		QuantityRemaining: order.RemainingAmount,
		TimeStamp:         formatDatetime(order.CreatedAt),
	}
}

// BalanceView is the account/getbalance(s) shape. CryptoAddress is always
// null; deposit address generation is not simulated.
type BalanceView struct {
	Currency      string          `json:"Currency"`
	Balance       decimal.Decimal `json:"Balance"`
	Available     decimal.Decimal `json:"Available"`
	Pending       decimal.Decimal `json:"Pending"`
	CryptoAddress *string         `json:"CryptoAddress"`
}

func formatBalance(balance *models.Balance) BalanceView {
	return BalanceView{
		Currency:  balance.Currency,
		Balance:   balance.Available.Add(balance.Pending).Add(balance.Frozen),
		Available: balance.Available,
		Pending:   balance.Pending,
	}
}

// DepositView is the account/getdeposithistory row shape.
type DepositView struct {
	Amount        decimal.Decimal `json:"Amount"`
	Confirmations int             `json:"Confirmations"`
	CryptoAddress *string         `json:"CryptoAddress"`
	Currency      string          `json:"Currency"`
	ID            string          `json:"Id"`
	LastUpdated   string          `json:"LastUpdated"`
	TxID          *string         `json:"TxId"`
}

func formatDeposit(transaction *models.Transaction) DepositView {
	lastUpdated := transaction.CreatedAt
	if transaction.UpdatedAt != nil {
		lastUpdated = *transaction.UpdatedAt
	}
	return DepositView{
		Amount:        transaction.Amount,
		Confirmations: transaction.Confirmations,
		CryptoAddress: transaction.Address,
		Currency:      transaction.Currency,
		ID:            transaction.ID,
		LastUpdated:   formatDatetime(lastUpdated),
		TxID:          transaction.Hash,
	}
}

// WithdrawalView is the account/getwithdrawalhistory row shape.
type WithdrawalView struct {
	Address        *string         `json:"Address"`
	Amount         decimal.Decimal `json:"Amount"`
	Authorized     bool            `json:"Authorized"`
	Canceled       bool            `json:"Canceled"`
	Currency       string          `json:"Currency"`
	InvalidAddress bool            `json:"InvalidAddress"`
	Opened         string          `json:"Opened"`
	PaymentUUID    string          `json:"PaymentUuid"`
	PendingPayment bool            `json:"PendingPayment"`
	TxCost         decimal.Decimal `json:"TxCost"`
	TxID           *string         `json:"TxId"`
}

func formatWithdrawal(transaction *models.Transaction) WithdrawalView {
	authorized := transaction.Status != models.TransactionStatusNonAuthorized &&
		transaction.Status != models.TransactionStatusCanceled
	return WithdrawalView{
		Address:        transaction.Address,
		Amount:         transaction.Amount,
		Authorized:     authorized,
		Canceled:       transaction.Status == models.TransactionStatusCanceled,
		Currency:       transaction.Currency,
		Opened:         formatDatetime(transaction.CreatedAt),
		PaymentUUID:    transaction.ID,
		PendingPayment: transaction.Status == models.TransactionStatusPending,
		TxCost:         transaction.Fee,
		TxID:           transaction.Hash,
	}
}
