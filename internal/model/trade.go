package model

import "time"

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade is one swap from a pool's trade history.
type Trade struct {
	Sender    string    `json:"sender"`
	VolumeUSD float64   `json:"volume_usd"`
	Side      string    `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

// Candle is one OHLCV bucket.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// HolderBalance is the net signed USD volume of one address across a trade history.
type HolderBalance struct {
	Address string  `json:"address"`
	Net     float64 `json:"net"`
}
