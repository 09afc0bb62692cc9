package wizard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Суммы хранятся как NUMERIC(10,2): до 8 цифр целой части и 2 после запятой
const (
	maxAmountIntDigits  = 8
	maxAmountFracDigits = 2
)

var amountPattern = regexp.MustCompile(`^\d+([.,]\d+)?$`)

// maxAmount - наименьшая сумма, которая уже не помещается в 8 цифр
var maxAmount = decimal.New(1, maxAmountIntDigits)

// ParseAmount разбирает сумму, введенную пользователем. Допускаются точка и
// запятая как десятичный разделитель, сумма должна быть больше нуля.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", ErrInvalidInput, raw)
	}
	d, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q: %v", ErrInvalidInput, raw, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if err := checkAmountRange(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// checkAmountRange проверяет, что сумма помещается в NUMERIC(10,2).
// Незначащие нули дробной части ("1000,50") не считаются.
func checkAmountRange(d decimal.Decimal) error {
	if d.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: amount %s exceeds %d digits", ErrInvalidInput, d.String(), maxAmountIntDigits)
	}
	if !d.Equal(d.Truncate(maxAmountFracDigits)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidInput, d.String(), maxAmountFracDigits)
	}
	return nil
}
