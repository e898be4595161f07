package middleware

// identity.go holds helpers shared across middleware files.

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated subject stored by JWTAuth as a
// string.  It returns "anon" for unauthenticated requests.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case uint64, int64, int:
		return fmt.Sprint(v)
	}
	return "anon"
}
