package handlers

import (
	"strconv"
	"strings"
)

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
