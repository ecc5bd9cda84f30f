package session

import (
	"sort"

	"stormdex/internal/model"
)

// Partition splits trades into buys and sells, preserving order. Trades with
// any other side are dropped.
func Partition(trades []model.Trade) (buys, sells []model.Trade) {
	buys = []model.Trade{}
	sells = []model.Trade{}
	for _, t := range trades {
		switch t.Side {
		case model.SideBuy:
			buys = append(buys, t)
		case model.SideSell:
			sells = append(sells, t)
		}
	}
	return buys, sells
}

// Holders accumulates net signed USD volume per sender. Addresses enter the
// ledger in trade-time order; the result puts non-negative balances first by
// descending amount, then negative balances by descending magnitude.
func Holders(trades []model.Trade) []model.HolderBalance {
	ordered := make([]model.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	index := make(map[string]int)
	ledger := make([]model.HolderBalance, 0)
	for _, t := range ordered {
		if t.Sender == "" {
			continue
		}
		delta := t.VolumeUSD
		switch t.Side {
		case model.SideBuy:
		case model.SideSell:
			delta = -delta
		default:
			continue
		}
		i, ok := index[t.Sender]
		if !ok {
			i = len(ledger)
			index[t.Sender] = i
			ledger = append(ledger, model.HolderBalance{Address: t.Sender})
		}
		ledger[i].Net += delta
	}

	sort.SliceStable(ledger, func(i, j int) bool {
		a, b := ledger[i].Net, ledger[j].Net
		if (a >= 0) != (b >= 0) {
			return a >= 0
		}
		if a >= 0 {
			return a > b
		}
		return a < b
	})
	return ledger
}
