package utils

import (
	"path/filepath"
	"strconv"
	"strings"

	"fixshade/pkg/ir"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// WithExt swaps the extension of path for ext, which includes its dot.
func WithExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// ParseWords reads "1, 2.5, -3" into entry-point argument words. Integers
// pass through; values with a decimal point or exponent become Q16.16.
func ParseWords(s string) ([]int32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var words []int32
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if strings.ContainsAny(field, ".eE") && !strings.HasPrefix(strings.TrimLeft(field, "+-"), "0x") {
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, err
			}
			words = append(words, ir.FixedFromFloat(f))
			continue
		}
		n, err := strconv.ParseInt(field, 0, 32)
		if err != nil {
			return nil, err
		}
		words = append(words, int32(n))
	}
	return words, nil
}
