package cache

import (
	"os"
	"regexp"
)

func compileCachePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(pattern)
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// writeFileAtomic writes data to path via a temp file plus rename, so a
// concurrent reader never observes a partially-written snapshot.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
