package domain

import "github.com/shopspring/decimal"

// MoneyPlaces es la precisión de los importes liquidados (centavos de USD).
const MoneyPlaces int32 = 2

// Cent es la unidad mínima que se reparte al liquidar.
var Cent = decimal.New(1, -MoneyPlaces)

var hundred = decimal.NewFromInt(100)

// RoundMoney redondea un importe a centavos (half-up).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// FloorMoney trunca un importe a centavos hacia -inf.
// Se usa al repartir el pool para no pagar nunca más de lo que hay.
func FloorMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(MoneyPlaces)
}

