package lending

import (
	"fmt"
	"time"

	"github.com/proyecto-sophia/cra-backend/internal/model"
)

// Denial explains why a borrow/reserve request was refused.  Handlers map
// it to HTTP 403.  The message is shown to the operator as-is.
type Denial struct {
	Reason string
}

func (d *Denial) Error() string { return d.Reason }

// CanBorrow decides whether the user may create a new loan or reservation
// at the given instant.  Checks run in order and fail fast:
//
//  1. an active sanction blocks everything;
//  2. any open overdue loan blocks, sanctioned or not;
//  3. non-profesores may hold at most MaxActiveItems open loans plus
//     pending reservations combined.  Profesores have no limit.
//
// activeItems and overdueLoans must be counted inside the same transaction
// that later claims the item, or two concurrent requests can both pass.
func (r Rules) CanBorrow(u *model.User, activeItems, overdueLoans int, now time.Time) error {
	if u.Sanctioned(now) {
		return &Denial{Reason: fmt.Sprintf("usuario sancionado hasta %s", u.SancionHasta.Format("02-01-2006"))}
	}
	if overdueLoans > 0 {
		return &Denial{Reason: "el usuario tiene préstamos atrasados"}
	}
	if u.Rol != model.RolProfesor && activeItems >= r.MaxActiveItems {
		return &Denial{Reason: fmt.Sprintf("el usuario ya tiene %d ítem(s) activos; el límite es %d", activeItems, r.MaxActiveItems)}
	}
	return nil
}
