package ledger

import (
	"fmt"

	"github.com/lamanada/tickets-api/internal/database"
)

// RetryOnConflict calls fn until it returns nil, an error that is not a
// uniqueness violation, or maxAttempts uniqueness violations in a row. fn is
// expected to regenerate whatever value collided before writing again.
func RetryOnConflict(maxAttempts int, fn func(attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil || !database.IsUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrConflictRetriesExhausted, maxAttempts, err)
}
