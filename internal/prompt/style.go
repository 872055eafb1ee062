package prompt

import "os"

// colorEnabled is false when NO_COLOR is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func bold(s string) string  { return paint("1", s) }
func red(s string) string   { return paint("31", s) }
func green(s string) string { return paint("32", s) }
func dim(s string) string   { return paint("2", s) }
