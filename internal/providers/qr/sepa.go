// Package qr builds EPC QR payloads ("GiroCode") for SEPA credit transfers.
// The payload is embedded into rendered documents; generating it is always
// best-effort and never fatal for billing.
package qr

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/faktura/internal/money"
)

// BuildSepaQR returns the EPC 069-12 payload for a SEPA transfer, or ok=false
// when no QR code should be produced (zero/negative amount, missing account
// data).
func BuildSepaQR(ownerName, iban, remittance string, amount decimal.Decimal) (string, bool) {
	ownerName = strings.TrimSpace(ownerName)
	iban = strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if ownerName == "" || iban == "" {
		return "", false
	}
	if !amount.IsPositive() {
		return "", false
	}

	payload := strings.Join([]string{
		"BCD",
		"002",
		"1",
		"SCT",
		"", // BIC optional since EPC v2
		ownerName,
		iban,
		fmt.Sprintf("EUR%s", money.Round2(amount).StringFixed(2)),
		"", // purpose
		"", // structured reference
		remittance,
	}, "\n")
	return payload, true
}
