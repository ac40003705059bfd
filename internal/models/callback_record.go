package models

import "time"

// CallbackRecord maps to the `ipg_callbacks` table. One row is written for
// every callback that passed digest verification.
type CallbackRecord struct {
	ID            uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID       string     `gorm:"column:order_id;size:200;index" json:"order_id"`
	Variant       string     `gorm:"column:variant;size:20" json:"variant"`
	Status        string     `gorm:"column:status;size:20;index" json:"status"`
	GatewayStatus string     `gorm:"column:gateway_status;size:100" json:"gateway_status"`
	Message       string     `gorm:"column:message;size:1000" json:"message"`
	Amount        string     `gorm:"column:amount;size:50" json:"amount"`
	Currency      string     `gorm:"column:currency;size:10" json:"currency"`
	ApprovalCode  string     `gorm:"column:approval_code;size:200" json:"approval_code"`
	TxnDateTime   string     `gorm:"column:txn_datetime;size:50" json:"txn_datetime"`
	StoredToken   string     `gorm:"column:stored_token;size:200" json:"stored_token,omitempty"`
	CardLastFour  string     `gorm:"column:card_last_four;size:4" json:"card_last_four,omitempty"`
	CardExpiry    string     `gorm:"column:card_expiry;size:10" json:"card_expiry,omitempty"`
	ThreeDSecure  *int       `gorm:"column:three_d_secure" json:"three_d_secure,omitempty"`
	HashAlgorithm string     `gorm:"column:hash_algorithm;size:20" json:"hash_algorithm"`
	Payload       string     `gorm:"column:payload;type:text" json:"-"`
	RelayedAt     *time.Time `gorm:"column:relayed_at" json:"relayed_at,omitempty"`
	ReceivedAt    time.Time  `gorm:"column:received_at;index" json:"received_at"`
}

func (CallbackRecord) TableName() string {
	return "ipg_callbacks"
}
