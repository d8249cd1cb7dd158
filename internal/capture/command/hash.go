package command

import (
	"fmt"

	"github.com/tabulara/tabulara/internal/capture/encoding"
)

// RequestHash computes the idempotency digest over the full command,
// including its type tag. Reusing a command id with any other payload or
// kind therefore yields a different hash and surfaces as a conflict.
func RequestHash(cmd Command) (string, error) {
	if cmd == nil {
		return "", ErrTypeRequired
	}
	desc := cmd.Descriptor()
	hash, err := encoding.ContentHash(map[string]any{
		"type":    string(desc.Type),
		"command": cmd,
	})
	if err != nil {
		return "", fmt.Errorf("hash command %s: %w", desc.Type, err)
	}
	return hash, nil
}
