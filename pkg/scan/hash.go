package scan

import (
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/sidkik/ftpmirror/pkg/errors"
)

// HashFile returns the md5 hash of the file at the given path as lowercase
// hex, the signature format of the state log.
func HashFile(path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WithContext(err, "open")
	}
	defer f.Close()

	hasher := md5.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.WithContext(err, "read")
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
