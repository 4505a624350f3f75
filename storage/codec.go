package storage

import (
	"fmt"

	"voicerelay/core"

	"github.com/bytedance/sonic"
)

// encodeTurns serializes a history as a JSON array of {role, content}.
func encodeTurns(turns []core.Turn) ([]byte, error) {
	if turns == nil {
		turns = []core.Turn{}
	}
	data, err := sonic.Marshal(turns)
	if err != nil {
		return nil, fmt.Errorf("storage: encode history: %w", err)
	}
	return data, nil
}

// decodeTurns parses a persisted history and rejects entries with unknown roles.
func decodeTurns(data []byte) ([]core.Turn, error) {
	var turns []core.Turn
	if err := sonic.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("storage: decode history: %w", err)
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("storage: decode history: turn %d has role %q", i, t.Role)
		}
	}
	return turns, nil
}
