package engine

import (
	"fmt"
	"regexp"

	"datagate/internal/metadata"
)

var itemRef = regexp.MustCompile(`@item\.(\w+)`)

// BindPolicyColumns rewrites every @item.<name> placeholder in a compiled
// row-policy predicate to the entity's real column name. A reference to a
// column the entity does not have is a configuration error surfaced as a
// request failure.
func BindPolicyColumns(entity *metadata.Entity, predicate string) (string, error) {
	var failure error
	bound := itemRef.ReplaceAllStringFunc(predicate, func(ref string) string {
		col := ref[len("@item."):]
		if !entity.HasField(col) {
			if failure == nil {
				failure = &AppError{
					Code:    "INVALID_POLICY",
					Status:  500,
					Message: fmt.Sprintf("Policy references unknown column %s on %s", col, entity.Name),
				}
			}
			return ref
		}
		return col
	})
	if failure != nil {
		return "", failure
	}
	return bound, nil
}
