package notifications

import (
	"math"
	"time"

	"github.com/immowaechter/immowaechter/internal/component"
	"github.com/immowaechter/immowaechter/internal/rules"
)

// Eligibility is the verdict for one component on one day.
type Eligibility struct {
	DaysUntil int  `json:"daysUntil"` // signed; negative when overdue
	IsOverdue bool `json:"isOverdue"`
	Eligible  bool `json:"eligible"`
}

// Evaluate decides whether a reminder fires today for a component due on
// nextDue. It fires on the fixed reminder offsets (30, 14, 7, 3, 1, 0 days
// ahead) and every OverdueCadenceDays once overdue. Day 0 is "due today"
// and counts as an offset, not as overdue.
func Evaluate(nextDue, today time.Time) Eligibility {
	diff := component.Civil(nextDue).Sub(component.Civil(today))
	days := int(math.Ceil(diff.Hours() / 24))

	e := Eligibility{DaysUntil: days, IsOverdue: days < 0}
	e.Eligible = rules.IsReminderOffset(days) ||
		(e.IsOverdue && -days%rules.OverdueCadenceDays == 0)
	return e
}

// AbsDays returns the unsigned day distance used in messages.
func (e Eligibility) AbsDays() int {
	if e.DaysUntil < 0 {
		return -e.DaysUntil
	}
	return e.DaysUntil
}
