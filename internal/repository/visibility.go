package repository

import (
	"fmt"

	"github.com/strumline/guitar-crm-api/internal/models"
)

// NoAccessID is a reserved identifier that never appears in any table. A
// caller with no recognised role gets an equality filter against it, so the
// query pipeline stays uniform and deterministically returns zero rows.
const NoAccessID = "00000000-0000-0000-0000-000000000000"

// Visibility is the row-level predicate derived from a caller's role flags.
// Exactly one shape is produced: unrestricted (admin), teacher_id equality,
// student_id equality, or an impossible match for callers with no role.
type Visibility struct {
	All    bool
	Column string
	Value  string
}

// VisibilityFor resolves the predicate for a caller. Flags are tested in
// priority order admin > teacher > student, so a multi-role user takes the
// most permissive rule that applies.
func VisibilityFor(flags models.RoleFlags, callerID string) Visibility {
	switch {
	case flags.IsAdmin:
		return Visibility{All: true}
	case flags.IsTeacher:
		return Visibility{Column: "teacher_id", Value: callerID}
	case flags.IsStudent:
		return Visibility{Column: "student_id", Value: callerID}
	default:
		return Visibility{Column: "id", Value: NoAccessID}
	}
}

// Apply appends the predicate as one more positional equality condition.
// alias qualifies the column when the query joins multiple tables. Admin
// visibility leaves the conditions untouched.
func (v Visibility) Apply(alias string, conditions []string, args []interface{}) ([]string, []interface{}) {
	if v.All {
		return conditions, args
	}
	column := v.Column
	if alias != "" {
		column = alias + "." + column
	}
	args = append(args, v.Value)
	conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	return conditions, args
}
