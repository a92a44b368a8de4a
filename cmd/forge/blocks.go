package main

import (
	"fmt"
	"os"
	"path/filepath"

	"promptforge/internal/types"
)

// loadBlocks reads each path into a context block. Later files in the
// same list get a slightly lower priority so the budgeter's
// descending-priority order matches the order flags were given in.
func loadBlocks(paths []string, base types.Priority) ([]types.ContextBlock, error) {
	blocks := make([]types.ContextBlock, 0, len(paths))
	for i, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read context file: %w", err)
		}
		prio := int(base) - i
		if prio < 1 {
			prio = 1
		}
		blocks = append(blocks, types.ContextBlock{
			ID:        filepath.Base(path),
			Role:      types.RoleContextDoc,
			Content:   string(raw),
			Priority:  types.Priority(prio),
			SourceTag: path,
		})
	}
	return blocks, nil
}
