package domain

import "time"

// Balance is the amount of one token held by one identity. Amounts are
// decimal strings because token amounts are 128-bit in the wire contract.
type Balance struct {
	Token     string    `gorm:"primaryKey;type:text" json:"token"`
	Holder    string    `gorm:"primaryKey;type:text" json:"holder"`
	Amount    string    `gorm:"not null;default:'0'" json:"amount"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Balance) TableName() string { return "token_balances" }

// Allowance is the remaining amount a spender may move out of an owner's
// balance. Settlement draws the engine's spender allowance down by the
// transferred amount.
type Allowance struct {
	Token     string    `gorm:"primaryKey;type:text" json:"token"`
	Owner     string    `gorm:"primaryKey;type:text" json:"owner"`
	Spender   string    `gorm:"primaryKey;type:text" json:"spender"`
	Amount    string    `gorm:"not null;default:'0'" json:"amount"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Allowance) TableName() string { return "token_allowances" }
