package commission

import (
	"github.com/shopspring/decimal"
)

var (
	adminRate    = decimal.New(20, -2)
	lecturerRate = decimal.New(80, -2)
)

// Breakdown is the platform/lecturer division of one payment, in minor currency units.
type Breakdown struct {
	Amount        int64 `json:"amount"`
	AdminShare    int64 `json:"adminShare"`
	LecturerShare int64 `json:"lecturerShare"`
}

// Split divides an amount 20/80 between the platform and the lecturer. Each share is
// rounded half-up to a whole minor unit on its own, so the sum may differ from the
// amount by at most one unit.
func Split(amountMinor int64) (adminShare, lecturerShare int64) {
	amount := decimal.NewFromInt(amountMinor)
	adminShare = amount.Mul(adminRate).Round(0).IntPart()
	lecturerShare = amount.Mul(lecturerRate).Round(0).IntPart()
	return adminShare, lecturerShare
}

// Preview returns the breakdown for an amount.
func Preview(amountMinor int64) Breakdown {
	admin, lecturer := Split(amountMinor)
	return Breakdown{Amount: amountMinor, AdminShare: admin, LecturerShare: lecturer}
}
