package simulation

import (
	"errors"

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/mcts"
)

// IsInvalidRequest reports whether err was caused by the request rather than
// the server.
func IsInvalidRequest(err error) bool {
	var errs mcts.ValidationErrors
	return errors.As(err, &errs) || errors.Is(err, mcts.ErrInvalidConfig)
}
