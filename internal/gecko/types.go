package gecko

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"stormdex/internal/model"
)

// Number is an upstream numeric field that may arrive as a JSON string, a JSON number or null.
type Number struct {
	Raw   string
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = Number{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		*n = Number{Raw: s, Valid: s != ""}
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = Number{Raw: num.String(), Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Raw)
}

// Float returns the parsed value and whether it was present and numeric.
func (n Number) Float() (float64, bool) {
	if !n.Valid {
		return 0, false
	}
	v, err := strconv.ParseFloat(n.Raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ListingPage is one page of a pool listing with its included token side table.
type ListingPage struct {
	Data     []Pool  `json:"data"`
	Included []Token `json:"included"`
}

// Ref is a JSON:API relationship reference.
type Ref struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type Pool struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Attributes    PoolAttributes `json:"attributes"`
	Relationships struct {
		BaseToken struct {
			Data *Ref `json:"data"`
		} `json:"base_token"`
	} `json:"relationships"`
}

// BaseTokenID returns the relationship id of the pool's base token, or "" when absent.
func (p Pool) BaseTokenID() string {
	if p.Relationships.BaseToken.Data == nil {
		return ""
	}
	return p.Relationships.BaseToken.Data.ID
}

type PoolAttributes struct {
	Address               string `json:"address"`
	Name                  string `json:"name"`
	PoolCreatedAt         string `json:"pool_created_at"`
	FDVUSD                Number `json:"fdv_usd"`
	ReserveInUSD          Number `json:"reserve_in_usd"`
	BaseTokenPriceUSD     Number `json:"base_token_price_usd"`
	PriceChangePercentage struct {
		H24 Number `json:"h24"`
	} `json:"price_change_percentage"`
	Transactions struct {
		H24 TxCounts `json:"h24"`
	} `json:"transactions"`
	VolumeUSD struct {
		H24 Number `json:"h24"`
	} `json:"volume_usd"`
}

// TxCounts are trailing-window transaction counters.
type TxCounts struct {
	Buys    int `json:"buys"`
	Sells   int `json:"sells"`
	Buyers  int `json:"buyers"`
	Sellers int `json:"sellers"`
}

type Token struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes TokenAttributes `json:"attributes"`
}

type TokenAttributes struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	ImageURL string `json:"image_url"`
	Decimals *int   `json:"decimals"`
}

// Metadata converts a side-table token into TokenMetadata.
func (t Token) Metadata() model.TokenMetadata {
	name := t.Attributes.Name
	if name == "" {
		name = t.Attributes.Symbol
	}
	if name == "" {
		name = "Unknown"
	}

	var decimals *int
	if t.Attributes.Decimals != nil {
		d := *t.Attributes.Decimals
		decimals = &d
	}

	return model.TokenMetadata{
		ID:       t.ID,
		IconURL:  t.Attributes.ImageURL,
		Decimals: decimals,
		Name:     name,
		Address:  t.Attributes.Address,
	}
}

// DedupTokens merges token side tables, keeping only type "token" entries and
// letting later entries win on id collisions. First-seen order is preserved.
func DedupTokens(tables ...[]Token) []Token {
	index := make(map[string]int)
	out := make([]Token, 0)
	for _, table := range tables {
		for _, item := range table {
			if item.Type != "token" {
				continue
			}
			if i, ok := index[item.ID]; ok {
				out[i] = item
				continue
			}
			index[item.ID] = len(out)
			out = append(out, item)
		}
	}
	return out
}

type tradesResponse struct {
	Data []struct {
		Attributes struct {
			BlockTimestamp string `json:"block_timestamp"`
			Kind           string `json:"kind"`
			VolumeInUSD    Number `json:"volume_in_usd"`
			TxFromAddress  string `json:"tx_from_address"`
		} `json:"attributes"`
	} `json:"data"`
}

type ohlcvResponse struct {
	Data *struct {
		Attributes struct {
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseTimestamp parses an upstream timestamp (unix seconds or RFC3339).
func ParseTimestamp(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(val, 0).UTC(), nil
	}

	return time.Parse(time.RFC3339, input)
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
