package schema

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// DiffObjects renders a JSON merge patch from the pre-image to the
// post-image of one dictionary object, for operator-facing DDL-change
// diagnostics (e.g. logged when a SystemTransaction alters a table's
// column set). A nil before means the object did not previously exist.
func DiffObjects(before, after *Object) ([]byte, error) {
	var beforeJSON = []byte("null")
	if before != nil {
		b, err := json.Marshal(before)
		if err != nil {
			return nil, fmt.Errorf("schema: marshaling pre-image: %w", err)
		}
		beforeJSON = b
	}

	afterJSON, err := json.Marshal(after)
	if err != nil {
		return nil, fmt.Errorf("schema: marshaling post-image: %w", err)
	}

	patch, err := jsonpatch.CreateMergePatch(beforeJSON, afterJSON)
	if err != nil {
		return nil, fmt.Errorf("schema: creating merge patch: %w", err)
	}
	return patch, nil
}
