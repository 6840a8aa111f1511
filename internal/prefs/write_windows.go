package prefs

import "os"

// renameio has no windows implementation.
func writeFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}
