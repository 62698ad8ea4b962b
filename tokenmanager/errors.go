package tokenmanager

import "fmt"

func duplicateTokenIDError(id string) error {
	return fmt.Errorf("tokenmanager: duplicate token id %q", id)
}
