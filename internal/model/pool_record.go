package model

// PoolRecord is the display-ready view of one listed pool.
// Records are rebuilt on every listing cycle and never patched in place.
type PoolRecord struct {
	Address          string `json:"address"`
	Name             string `json:"name"`
	IconURL          string `json:"icon_url,omitempty"`
	Age              string `json:"age"`
	FDV              string `json:"fdv"`
	Liquidity        string `json:"liquidity"`
	Buys             int    `json:"buys"`
	Sells            int    `json:"sells"`
	Buyers           int    `json:"buyers"`
	Sellers          int    `json:"sellers"`
	PriceChange24h   string `json:"price_change_24h"`
	Supply           string `json:"supply"`
	BaseTokenAddress string `json:"base_token_address"`
	BaseTokenName    string `json:"base_token_name"`
	Volume24h        string `json:"volume_24h"`
	Price            string `json:"price"`
	AuditEligible    bool   `json:"audit_eligible"`
}

// TokenMetadata is the token side-table entry joined onto pool records.
type TokenMetadata struct {
	ID       string `json:"id"`
	IconURL  string `json:"icon_url,omitempty"`
	Decimals *int   `json:"decimals,omitempty"`
	Name     string `json:"name"`
	Address  string `json:"address"`
}

// UnknownToken is substituted when a pool references a token missing from the side table.
func UnknownToken() TokenMetadata {
	return TokenMetadata{Name: "Unknown"}
}
