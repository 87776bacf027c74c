package money

import (
	"bytes"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale – число знаков после запятой, с которым хранятся и сериализуются суммы.
const Scale = 8

// ErrInvalid возвращается для пустых, нечисловых и бесконечных значений.
var ErrInvalid = errors.New("invalid money value")

var hundred = decimal.NewFromInt(100)

// Money – десятичная сумма с фиксированной точностью 8 знаков.
// Нулевое значение Money – это 0.
type Money struct {
	d decimal.Decimal
}

// Zero – нулевая сумма.
var Zero = Money{}

// New округляет decimal до Scale знаков (half-up).
func New(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// FromInt создаёт сумму из целого числа.
func FromInt(i int64) Money {
	return Money{d: decimal.NewFromInt(i)}
}

// Parse разбирает строковое представление суммы.
// NaN и бесконечности отклоняются, лишние знаки округляются до Scale.
func Parse(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Zero, err
	}
	return New(d), nil
}

// ParseExact – как Parse, но отклоняет значения с более чем Scale значащими
// знаками после запятой вместо округления. Используется для входных запросов.
func ParseExact(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Zero, err
	}
	if !d.Equal(d.Round(Scale)) {
		return Zero, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalid, strings.TrimSpace(s), Scale)
	}
	return New(d), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty string", ErrInvalid)
	}
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan", "inf", "infinity":
		return decimal.Zero, fmt.Errorf("%w: %q is not finite", ErrInvalid, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return d, nil
}

// MustParse – как Parse, но паникует при ошибке. Для констант и тестов.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(n Money) Money { return Money{d: m.d.Add(n.d)} }
func (m Money) Sub(n Money) Money { return Money{d: m.d.Sub(n.d)} }
func (m Money) Mul(n Money) Money { return New(m.d.Mul(n.d)) }

// Div делит с округлением half-up до Scale знаков. Деление на ноль паникует.
func (m Money) Div(n Money) Money {
	return Money{d: m.d.DivRound(n.d, Scale)}
}

// Percent возвращает m * p / 100 без промежуточного округления.
func (m Money) Percent(p Money) Money {
	return Money{d: m.d.Mul(p.d).DivRound(hundred, Scale)}
}

// MulRatio возвращает m * num / den без промежуточного округления.
func (m Money) MulRatio(num, den int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(num)).DivRound(decimal.NewFromInt(den), Scale)}
}

func (m Money) Cmp(n Money) int                 { return m.d.Cmp(n.d) }
func (m Money) Equal(n Money) bool              { return m.d.Equal(n.d) }
func (m Money) LessThan(n Money) bool           { return m.d.LessThan(n.d) }
func (m Money) LessThanOrEqual(n Money) bool    { return m.d.LessThanOrEqual(n.d) }
func (m Money) GreaterThan(n Money) bool        { return m.d.GreaterThan(n.d) }
func (m Money) GreaterThanOrEqual(n Money) bool { return m.d.GreaterThanOrEqual(n.d) }
func (m Money) IsZero() bool                    { return m.d.IsZero() }
func (m Money) IsPositive() bool                { return m.d.IsPositive() }
func (m Money) IsNegative() bool                { return m.d.IsNegative() }
func (m Money) Decimal() decimal.Decimal        { return m.d }

// IsFinite всегда true: NaN и бесконечности отсекаются при разборе.
func (m Money) IsFinite() bool { return true }

// String возвращает каноническую форму с ровно 8 знаками после запятой.
func (m Money) String() string { return m.d.StringFixed(Scale) }

// MarshalJSON сериализует сумму строкой, чтобы не терять точность в float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON принимает как строку, так и числовой литерал JSON.
// Литерал разбирается как десятичный текст, без float64. Больше Scale знаков
// после запятой – ошибка: клиент не должен получить округлённую сумму.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: null", ErrInvalid)
	}
	s := string(bytes.Trim(data, `"`))
	parsed, err := ParseExact(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value реализует driver.Valuer: в БД уходит строка с 8 знаками.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan реализует sql.Scanner для колонок NUMERIC.
func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("money: scan: %w", err)
	}
	*m = New(d)
	return nil
}
