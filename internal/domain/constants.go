package domain

// Order book sides
const (
	SideBid = "bid"
	SideAsk = "ask"
)

// Order types
const (
	OrderTypeBuy  = "buy"
	OrderTypeSell = "sell"
)

// OrderTypeFor возвращает тип ордера для стороны книги
func OrderTypeFor(side string) string {
	if side == SideAsk {
		return OrderTypeSell
	}
	return OrderTypeBuy
}

// Venue names
const (
	VenueBittrex = "bittrex"
)
