package shell

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBool interprets the operator-facing boolean vocabulary. Tokens are
// matched case-insensitively; anything outside the table is an input error.
func ParseBool(tok string) (bool, error) {
	switch strings.ToLower(tok) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q (use on/off, true/false, yes/no, 1/0)", tok)
	}
}

func parseInt(tok string) (int, error) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", tok)
	}
	return n, nil
}

func parseFloat(tok string) (float64, error) {
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", tok)
	}
	return f, nil
}
