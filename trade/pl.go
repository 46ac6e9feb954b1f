package trade

// PnL is the profit of quantity units from entry to exit, sign-adjusted
// for direction.
func PnL(d Direction, entry, exit, quantity float64) float64 {
	return (exit - entry) * quantity * d.Sign()
}

// Excursion is the favourable price move per unit; negative when adverse.
func Excursion(d Direction, entry, price float64) float64 {
	return (price - entry) * d.Sign()
}
