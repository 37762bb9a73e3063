package market

// Stock is an entry in the fixed stock picker catalogue
type Stock struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

var catalog = []Stock{
	{Symbol: "AAPL", Name: "Apple Inc."},
	{Symbol: "TSLA", Name: "Tesla Inc."},
	{Symbol: "MSFT", Name: "Microsoft Corp."},
	{Symbol: "RELIANCE", Name: "Reliance Industries"},
	{Symbol: "TCS", Name: "Tata Consultancy Services"},
	{Symbol: "INFY", Name: "Infosys Ltd."},
}

// Catalog returns a copy of the stock picker list
func Catalog() []Stock {
	out := make([]Stock, len(catalog))
	copy(out, catalog)
	return out
}
