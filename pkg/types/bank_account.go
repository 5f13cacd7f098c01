package types

import (
	"fmt"
	"strings"
)

// BankAccount is the payout destination attached to a withdrawal request.
// Replaces the untyped JSON blob the mobile clients used to send.
type BankAccount struct {
	BankName      string `json:"bank_name"`
	BankCode      string `json:"bank_code,omitempty"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// Validate checks the fields required to issue a bank transfer. NUBAN account
// numbers are ten digits.
func (b BankAccount) Validate() error {
	if strings.TrimSpace(b.BankName) == "" {
		return fmt.Errorf("bank account: missing bank name")
	}
	if strings.TrimSpace(b.AccountName) == "" {
		return fmt.Errorf("bank account: missing account name")
	}
	number := strings.TrimSpace(b.AccountNumber)
	if len(number) != 10 {
		return fmt.Errorf("bank account: account number must be 10 digits")
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return fmt.Errorf("bank account: account number must be 10 digits")
		}
	}
	return nil
}

// Masked returns the account number with all but the last four digits hidden.
func (b BankAccount) Masked() string {
	number := strings.TrimSpace(b.AccountNumber)
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
