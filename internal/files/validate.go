package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateTable checks that path is a readable, non-empty pillar table
func ValidateTable(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	name := filepath.Base(path)
	if !IsTable(name) {
		return fmt.Errorf("file %s is not a pillar table (expected %s)", path, strings.Join(TableExtensions, ", "))
	}
	if isTemporary(name) {
		return fmt.Errorf("file %s is a temporary Excel file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()
	return nil
}
