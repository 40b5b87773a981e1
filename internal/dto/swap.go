package dto

// SwapOrderRequest is the signed payload a user submits to open a swap.
// Prices and amounts are decimal strings; prices use 6-decimal fixed point
// once parsed.
type SwapOrderRequest struct {
	Requester         string `json:"requester" binding:"required"`
	SrcChainID        int    `json:"srcChainId" binding:"required"`
	DstChainID        int    `json:"dstChainId" binding:"required"`
	SrcToken          string `json:"srcToken" binding:"required"`
	DstToken          string `json:"dstToken" binding:"required"`
	SrcAmount         string `json:"srcAmount" binding:"required"`
	ExactInput        bool   `json:"exactInput"`
	SecretHash        string `json:"secretHash" binding:"required"`
	InitialPrice      string `json:"initialPrice" binding:"required"`
	FinalPrice        string `json:"finalPrice" binding:"required"`
	AuctionStart      int64  `json:"auctionStart" binding:"required"`
	AuctionEnd        int64  `json:"auctionEnd" binding:"required"`
	SafetyFactor      string `json:"safetyFactor"`
	CreationTimestamp int64  `json:"creationTimestamp" binding:"required"`
	FillDeadline      int64  `json:"fillDeadline" binding:"required"`
}

// CreateSwapRequest wraps the order with the user's signature over its JSON
// encoding and the swap secret held in escrow by the relayer.
type CreateSwapRequest struct {
	SwapRequest SwapOrderRequest `json:"swapRequest" binding:"required"`
	Signature   string           `json:"signature" binding:"required"`
	Secret      string           `json:"secret" binding:"required"`
}

type CreateSwapResponse struct {
	OrderID      string `json:"orderId"`
	Status       string `json:"status"`
	CurrentPrice string `json:"currentPrice,omitempty"`
	FillDeadline int64  `json:"fillDeadline"`
	Message      string `json:"message"`
}

// CommitResolverRequest is a resolver's bid to become the exclusive filler
type CommitResolverRequest struct {
	OrderID        string `json:"orderId" binding:"required"`
	Resolver       string `json:"resolver" binding:"required"`
	CommittedPrice string `json:"committedPrice" binding:"required"`
	SafetyDeposit  string `json:"safetyDeposit"`
}

type CommitResolverResponse struct {
	OrderID        string `json:"orderId"`
	Resolver       string `json:"resolver"`
	CommittedPrice string `json:"committedPrice"`
	ExpectedDstAmt string `json:"expectedDstAmount"`
	Deadline       int64  `json:"commitDeadline"`
	Status         string `json:"status"`
}

// ResolverUpdateRequest reports deployed escrow addresses for an order
type ResolverUpdateRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	Resolver  string `json:"resolver" binding:"required"`
	SrcEscrow string `json:"srcEscrow"`
	DstEscrow string `json:"dstEscrow"`
	Status    string `json:"status"`
}

// TradeCompleteRequest declares that both escrows are funded and asks the
// relayer to verify balances on chain
type TradeCompleteRequest struct {
	OrderID         string `json:"orderId" binding:"required"`
	Resolver        string `json:"resolver" binding:"required"`
	SrcEscrowFunded bool   `json:"srcEscrowFunded"`
	DstEscrowFunded bool   `json:"dstEscrowFunded"`
}

type EscrowStatus struct {
	ChainID       int    `json:"chainId"`
	EscrowAddress string `json:"escrowAddress"`
	Funded        bool   `json:"funded"`
	Balance       string `json:"balance,omitempty"`
}

// OrderStatusResponse is the public view of an order; the secret never
// appears here
type OrderStatusResponse struct {
	OrderID        string        `json:"orderId"`
	Status         string        `json:"status"`
	Requester      string        `json:"requester"`
	SrcChainID     int           `json:"srcChainId"`
	DstChainID     int           `json:"dstChainId"`
	SrcToken       string        `json:"srcToken"`
	DstToken       string        `json:"dstToken"`
	SrcAmount      string        `json:"srcAmount"`
	ExactInput     bool          `json:"exactInput"`
	SecretHash     string        `json:"secretHash"`
	CurrentPrice   string        `json:"currentPrice,omitempty"`
	EffectivePrice string        `json:"effectivePrice,omitempty"`
	AuctionStart   int64         `json:"auctionStart"`
	AuctionEnd     int64         `json:"auctionEnd"`
	FillDeadline   int64         `json:"fillDeadline"`
	Resolver       string        `json:"resolver,omitempty"`
	CommitDeadline int64         `json:"commitDeadline,omitempty"`
	SrcEscrow      *EscrowStatus `json:"srcEscrow,omitempty"`
	DstEscrow      *EscrowStatus `json:"dstEscrow,omitempty"`
}

// OrderSecretResponse reveals the preimage to the committed resolver
type OrderSecretResponse struct {
	OrderID      string `json:"orderId"`
	Secret       string `json:"secret"`
	SecretHash   string `json:"secretHash"`
	RevealTxHash string `json:"revealTxHash,omitempty"` // relayer's destination withdraw, when it landed
}

type ActiveOrdersResponse struct {
	Orders []OrderStatusResponse `json:"orders"`
	Count  int                   `json:"count"`
}

// OrderAnnouncement is the NEW_ORDER message published to resolvers over
// NATS when an order opens or reopens for rescue
type OrderAnnouncement struct {
	OrderID      string `json:"orderId"`
	OrderType    string `json:"orderType"`
	Requester    string `json:"requester"`
	SrcChainID   int    `json:"srcChainId"`
	DstChainID   int    `json:"dstChainId"`
	SrcToken     string `json:"srcToken"`
	DstToken     string `json:"dstToken"`
	SrcAmount    string `json:"srcAmount"`
	ExactInput   bool   `json:"exactInput"`
	SecretHash   string `json:"secretHash"`
	InitialPrice string `json:"initialPrice"`
	FinalPrice   string `json:"finalPrice"`
	AuctionStart int64  `json:"auctionStart"`
	AuctionEnd   int64  `json:"auctionEnd"`
	FillDeadline int64  `json:"fillDeadline"`
	Rescue       bool   `json:"rescue"`
}

// OrderTypeDutchAuction is the only auction style currently announced
const OrderTypeDutchAuction = "DUTCH_AUCTION"

// ErrorResponse is the uniform error body returned by all handlers
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
