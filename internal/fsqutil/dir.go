package fsqutil

import "os"

// MkdirIfNotExist mirrors internal/engine/helper.go's mkdirIfNotExist: it is
// the one place the engine creates the working directory, tolerating a
// directory that already exists.
func MkdirIfNotExist(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		return os.MkdirAll(dir, os.ModePerm)
	}
	return nil
}
