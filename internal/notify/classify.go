package notify

import "strings"

// Cause is the user-facing category of a failed transaction.
type Cause string

const (
	CauseInsufficientGas     Cause = "insufficient_gas"
	CauseInsufficientBalance Cause = "insufficient_balance"
	CauseWrongAmount         Cause = "wrong_amount"
	CauseGeneric             Cause = "generic"
)

var causePatterns = []struct {
	cause    Cause
	patterns []string
}{
	{CauseInsufficientGas, []string{"insufficient gas", "insufficientgas", "out of gas", "intrinsic gas too low", "gas budget", "gas required exceeds"}},
	{CauseInsufficientBalance, []string{"insufficient balance", "insufficient funds", "insufficientcoinbalance"}},
	{CauseWrongAmount, []string{"wrong amount", "invalid amount", "amount must"}},
}

// Classify maps a wallet failure detail to a cause and the message shown to
// the user. Matching is case-insensitive substring search; the first matching
// category wins.
func Classify(detail string) (Cause, string) {
	lower := strings.ToLower(detail)
	for _, c := range causePatterns {
		for _, p := range c.patterns {
			if strings.Contains(lower, p) {
				return c.cause, causeMessage(c.cause, detail)
			}
		}
	}
	return CauseGeneric, causeMessage(CauseGeneric, detail)
}

func causeMessage(cause Cause, detail string) string {
	switch cause {
	case CauseInsufficientGas:
		return "Insufficient gas to cover the transaction fee"
	case CauseInsufficientBalance:
		return "Insufficient balance for this deposit"
	case CauseWrongAmount:
		return "Wrong deposit amount"
	default:
		if detail == "" {
			return "Transaction failed"
		}
		return "Transaction failed: " + detail
	}
}
