package gw2

// PriceSide is one side of a commerce price listing. UnitPrice is the best
// order price in copper; Quantity is the total quantity listed at all prices.
type PriceSide struct {
	UnitPrice int64 `json:"unit_price"`
	Quantity  int64 `json:"quantity"`
}

// Price is the commerce price entry for a single item as returned by
// /v2/commerce/prices.
type Price struct {
	ID    int64     `json:"id"`
	Buys  PriceSide `json:"buys"`
	Sells PriceSide `json:"sells"`
}

// ItemInfo is the subset of /v2/items the resolver needs.
type ItemInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
