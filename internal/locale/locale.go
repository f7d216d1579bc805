// Package locale validates that the process's effective locale is
// UTF-8 at startup, per spec.md §6 ("otherwise startup fails with a
// diagnostic"). POSIX resolves the effective locale category by
// checking LC_ALL, then the specific category variable, then LANG, in
// that order; this mirrors that lookup for LC_CTYPE since that's the
// category governing character encoding.
package locale

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// CheckUTF8 returns an error if the effective LC_CTYPE locale is not a
// UTF-8 one. The "C"/"POSIX" locale and anything whose name does not
// contain "utf8" or "utf-8" (case-insensitively) is rejected.
func CheckUTF8() error {
	loc := effectiveCtype()
	if isUTF8(loc) {
		return nil
	}
	return fmt.Errorf("locale: effective LC_CTYPE %q is not UTF-8; set LANG or LC_ALL to a UTF-8 locale", loc)
}

func effectiveCtype() string {
	for _, name := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func isUTF8(loc string) bool {
	lower := strings.ToLower(loc)
	return strings.Contains(lower, "utf-8") || strings.Contains(lower, "utf8")
}

// Diagnose prints a colored (when attached to a terminal) diagnostic for
// a locale check failure to stderr.
func Diagnose(err error) {
	out := termenv.NewOutput(os.Stderr)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintln(os.Stderr, out.String(err.Error()).Foreground(termenv.ANSIRed))
		return
	}
	fmt.Fprintln(os.Stderr, err.Error())
}
