package frames

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ivlev/scrollframes/internal/config"
)

// Name returns the asset name of frame i, e.g. "ezgif-frame-007.webp".
func Name(fc config.FramesConfig, i int) string {
	return fmt.Sprintf("%s%0*d%s", fc.Prefix, fc.Digits, i, fc.Ext)
}

// ParseName is the inverse of Name. It accepts only names that follow the
// convention exactly and whose index lies in [1, fc.Count].
func ParseName(fc config.FramesConfig, name string) (int, bool) {
	if len(name) < len(fc.Prefix)+len(fc.Ext) ||
		!strings.HasPrefix(name, fc.Prefix) || !strings.HasSuffix(name, fc.Ext) {
		return 0, false
	}
	digits := name[len(fc.Prefix) : len(name)-len(fc.Ext)]
	if len(digits) < fc.Digits {
		return 0, false
	}
	i, err := strconv.Atoi(digits)
	if err != nil || i < 1 || i > fc.Count {
		return 0, false
	}
	if Name(fc, i) != name {
		return 0, false
	}
	return i, true
}
