package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	amountPlaces    = 2
	amountMaxDigits = 12
)

var amountLimit = decimal.New(1, amountMaxDigits-amountPlaces)

// Amount is a monetary value stored as numeric(12,2). It keeps exactly two decimal places on
// input, storage and output.
type Amount struct {
	decimal.Decimal
}

func NewAmount(value string) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return checkAmount(d)
}

func checkAmount(d decimal.Decimal) (Amount, error) {
	if d.Exponent() < -amountPlaces {
		return Amount{}, fmt.Errorf("ensure that there are no more than %d decimal places", amountPlaces)
	}
	if d.Abs().GreaterThanOrEqual(amountLimit) {
		return Amount{}, fmt.Errorf("ensure that there are no more than %d digits in total", amountMaxDigits)
	}
	return Amount{Decimal: d}, nil
}

// MarshalJSON renders the amount as a number with two decimal places, e.g. 1000000.00.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(amountPlaces)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	text := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if text == "null" {
		return nil
	}
	if len(data) > 0 && data[0] != '"' && !json.Valid(data) {
		return fmt.Errorf("invalid amount %s", data)
	}
	parsed, err := NewAmount(text)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) Value() (driver.Value, error) {
	return a.StringFixed(amountPlaces), nil
}

func (a *Amount) Scan(value any) error {
	return a.Decimal.Scan(value)
}

func (Amount) GormDataType() string {
	return "numeric(12,2)"
}

func (Amount) SchemaType() string {
	return "decimal"
}
