package models

import (
	"time"
)

// OrderStatus swap order state machine states
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"          // created, broadcast, waiting for a resolver
	OrderStatusCommitted       OrderStatus = "committed"        // single resolver committed, commitment window running
	OrderStatusEscrowsDeployed OrderStatus = "escrows_deployed" // both escrow addresses reported and verified
	OrderStatusFundsLocked     OrderStatus = "funds_locked"     // both escrows confirmed funded on-chain
	OrderStatusCompleted       OrderStatus = "completed"        // secret revealed on destination chain
	OrderStatusRescueAvailable OrderStatus = "rescue_available" // resolver timed out, open for rescue
	OrderStatusFailed          OrderStatus = "failed"           // unrecoverable error, manual resolution via timelocks
)

// Terminal reports whether the status admits no further transitions
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// Order cross-chain swap order. The status column is the single source of
// truth for the state machine; every transition is a guarded CAS on it.
type Order struct {
	ID          string `json:"order_id" gorm:"primaryKey;type:varchar(66)"` // 0x + keccak256 hex
	Requester   string `json:"requester" gorm:"type:varchar(66);not null;index:idx_orders_requester"`
	SrcChainID  int    `json:"src_chain_id" gorm:"not null;index:idx_orders_src_chain"`
	DstChainID  int    `json:"dst_chain_id" gorm:"not null"`
	SrcToken    string `json:"src_token" gorm:"type:varchar(66);not null"`
	DstToken    string `json:"dst_token" gorm:"type:varchar(66);not null"`
	SrcAmount   string `json:"src_amount" gorm:"type:varchar(80);not null"` // wei-scale numeric string
	ExactInput  bool   `json:"is_exact_input" gorm:"not null;default:true"`
	SecretHash  string `json:"secret_hash" gorm:"type:varchar(66);not null"` // immutable after creation

	// Dutch auction parameters, scaled integers with pricing.PriceDecimals decimals
	InitialPrice     string `json:"initial_price" gorm:"type:varchar(80);not null"`
	FinalPrice       string `json:"final_price" gorm:"type:varchar(80);not null"`
	AuctionStart     int64  `json:"auction_start" gorm:"not null"`
	AuctionEnd       int64  `json:"auction_end" gorm:"not null"`
	SafetyFactorPPM  int64  `json:"safety_factor_ppm" gorm:"not null"` // parts per million, 950000 = 0.95

	CreationTimestamp int64       `json:"creation_timestamp" gorm:"not null"`
	FillDeadline      int64       `json:"fill_deadline" gorm:"not null;index:idx_orders_deadline"`
	Status            OrderStatus `json:"status" gorm:"type:varchar(24);not null;index:idx_orders_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommitmentStatus lifecycle of a resolver commitment
type CommitmentStatus string

const (
	CommitmentStatusActive    CommitmentStatus = "active"
	CommitmentStatusExpired   CommitmentStatus = "expired"   // deadline elapsed, forfeited
	CommitmentStatusCompleted CommitmentStatus = "completed" // order reached completed under this commitment
)

// Commitment a resolver's exclusive claim on an order. At most one row per
// order may be active at any time; the order-status CAS enforces it.
type Commitment struct {
	ID              string           `json:"id" gorm:"primaryKey"` // UUID
	OrderID         string           `json:"order_id" gorm:"type:varchar(66);not null;index:idx_commitments_order"`
	Resolver        string           `json:"resolver" gorm:"type:varchar(66);not null;index:idx_commitments_resolver"`
	CommittedPrice  string           `json:"committed_price" gorm:"type:varchar(80);not null"`
	ExpectedDstAmt  string           `json:"expected_dst_amount" gorm:"column:expected_dst_amount;type:varchar(80);not null"`
	SafetyDeposit   string           `json:"safety_deposit" gorm:"type:varchar(80);not null"`
	Rescue          bool             `json:"rescue" gorm:"not null;default:false"` // committed against a rescue_available order
	CommittedAt     time.Time        `json:"committed_at" gorm:"not null"`
	Deadline        time.Time        `json:"deadline" gorm:"not null;index:idx_commitments_deadline"`
	Status          CommitmentStatus `json:"status" gorm:"type:varchar(16);not null;index:idx_commitments_status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// EscrowSide which chain an escrow record belongs to
type EscrowSide string

const (
	EscrowSideSource      EscrowSide = "src"
	EscrowSideDestination EscrowSide = "dst"
)

// EscrowRecord one per chain side per order. Funded transitions false→true
// exactly once, only after the chain balance has been observed.
type EscrowRecord struct {
	ID               uint       `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID          string     `json:"order_id" gorm:"type:varchar(66);not null;uniqueIndex:idx_escrows_order_side,priority:1"`
	Side             EscrowSide `json:"side" gorm:"type:varchar(4);not null;uniqueIndex:idx_escrows_order_side,priority:2"`
	ChainID          int        `json:"chain_id" gorm:"not null"`
	EscrowAddress    string     `json:"escrow_address" gorm:"type:varchar(66);not null"`
	RequiredAmount   string     `json:"required_amount" gorm:"type:varchar(80);not null"`
	SafetyDeposit    string     `json:"safety_deposit" gorm:"type:varchar(80);not null"`
	Funded           bool       `json:"funded" gorm:"not null;default:false"`
	ObservedBalance  string     `json:"observed_balance" gorm:"type:varchar(80)"`
	FundedAt         *time.Time `json:"funded_at"`
	WithdrawDeadline int64      `json:"withdraw_deadline"` // unix, escrow timelock schedule
	CancelDeadline   int64      `json:"cancel_deadline"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// SecretRecord the user's HTLC secret, sealed at rest. Released exactly once.
type SecretRecord struct {
	OrderID      string     `json:"order_id" gorm:"primaryKey;type:varchar(66)"`
	SecretHash   string     `json:"secret_hash" gorm:"type:varchar(66);not null"`
	SealedSecret string     `json:"-" gorm:"type:text;not null"` // base64(nonce || chacha20poly1305 ciphertext)
	Revealed     bool       `json:"revealed" gorm:"not null;default:false"`
	RevealTxHash string     `json:"reveal_tx_hash" gorm:"type:varchar(66)"`
	RevealedAt   *time.Time `json:"revealed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PenaltyStatus lifecycle of a forfeited safety deposit
type PenaltyStatus string

const (
	PenaltyStatusPending PenaltyStatus = "pending" // forfeited, no rescuer yet
	PenaltyStatusClaimed PenaltyStatus = "claimed" // rescuer completed the order
)

// PenaltyRecord created by the rescue monitor when a commitment expires.
// The rescuer field is filled when another resolver commits to the reopened
// order, and the penalty is claimed when that resolver completes it.
type PenaltyRecord struct {
	ID             string        `json:"id" gorm:"primaryKey"` // UUID
	OrderID        string        `json:"order_id" gorm:"type:varchar(66);not null;index:idx_penalties_order"`
	FailedResolver string        `json:"failed_resolver" gorm:"type:varchar(66);not null;index:idx_penalties_resolver"`
	Rescuer        string        `json:"rescuer" gorm:"type:varchar(66)"`
	DepositAmount  string        `json:"deposit_amount" gorm:"type:varchar(80);not null"`
	Status         PenaltyStatus `json:"status" gorm:"type:varchar(16);not null;index:idx_penalties_status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
