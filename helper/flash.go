package helper

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"

	flashCookiePrefix = "flash_"
	flashMaxAge       = 60
)

// Flashes are one-shot messages carried to the next page view in cookies.
type Flashes struct {
	Success string
	Warning string
	Error   string
}

func SetFlash(c *gin.Context, kind FlashKind, message string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookiePrefix+string(kind), message, flashMaxAge, "/", "", false, true)
}

// PopFlashes reads and clears the flash cookies of the request.
func PopFlashes(c *gin.Context) Flashes {
	var f Flashes
	for kind, dst := range map[FlashKind]*string{
		FlashSuccess: &f.Success,
		FlashWarning: &f.Warning,
		FlashError:   &f.Error,
	} {
		name := flashCookiePrefix + string(kind)
		raw, err := c.Cookie(name)
		if err != nil || raw == "" {
			continue
		}
		*dst = raw
		c.SetCookie(name, "", -1, "/", "", false, true)
	}
	return f
}
