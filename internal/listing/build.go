package listing

import (
	"strings"
	"time"

	"stormdex/internal/format"
	"stormdex/internal/gecko"
	"stormdex/internal/model"
)

// Merge concatenates pool entries in page order and joins each onto its base token.
// Token side tables are deduplicated by id before the join.
func Merge(pages []gecko.ListingPage, now time.Time) []model.PoolRecord {
	tables := make([][]gecko.Token, 0, len(pages))
	total := 0
	for _, page := range pages {
		tables = append(tables, page.Included)
		total += len(page.Data)
	}

	tokens := make(map[string]model.TokenMetadata)
	for _, token := range gecko.DedupTokens(tables...) {
		tokens[token.ID] = token.Metadata()
	}

	records := make([]model.PoolRecord, 0, total)
	for _, page := range pages {
		for _, pool := range page.Data {
			token, ok := tokens[pool.BaseTokenID()]
			if !ok {
				token = model.UnknownToken()
			}
			records = append(records, BuildRecord(pool, token, now))
		}
	}
	return records
}

// BuildRecord computes the derived display fields of one pool.
func BuildRecord(pool gecko.Pool, token model.TokenMetadata, now time.Time) model.PoolRecord {
	attrs := pool.Attributes
	tx := attrs.Transactions.H24

	created, err := gecko.ParseTimestamp(attrs.PoolCreatedAt)
	if err != nil {
		created = time.Time{}
	}

	return model.PoolRecord{
		Address:          attrs.Address,
		Name:             displayName(attrs.Name),
		IconURL:          token.IconURL,
		Age:              format.Age(created, now),
		FDV:              format.Magnitude(attrs.FDVUSD.Raw),
		Liquidity:        format.Magnitude(attrs.ReserveInUSD.Raw),
		Buys:             tx.Buys,
		Sells:            tx.Sells,
		Buyers:           tx.Buyers,
		Sellers:          tx.Sellers,
		PriceChange24h:   format.Percent(attrs.PriceChangePercentage.H24.Raw),
		Supply:           format.Supply(token.Decimals),
		BaseTokenAddress: token.Address,
		BaseTokenName:    token.Name,
		Volume24h:        format.Magnitude(attrs.VolumeUSD.H24.Raw),
		Price:            format.Price(attrs.BaseTokenPriceUSD.Raw),
		AuditEligible:    Eligible(tx.Buys, tx.Sells),
	}
}

// Eligible reports whether a pool qualifies for audit enrichment.
func Eligible(buys, sells int) bool {
	return buys > 0 && sells > 0
}

// EligibleAddresses returns the distinct base-token addresses of eligible pools in listing order.
func EligibleAddresses(pools []model.PoolRecord) []string {
	seen := make(map[string]struct{}, len(pools))
	out := make([]string, 0, len(pools))
	for _, pool := range pools {
		if !pool.AuditEligible || pool.BaseTokenAddress == "" {
			continue
		}
		if _, ok := seen[pool.BaseTokenAddress]; ok {
			continue
		}
		seen[pool.BaseTokenAddress] = struct{}{}
		out = append(out, pool.BaseTokenAddress)
	}
	return out
}

func displayName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	return fields[0]
}
