package middleware

import (
	"crypto/subtle"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/txconflict/api"
)

var ErrUnauthorized = fmt.Errorf("invalid username or password")

// Authorization guards a route with basic auth. Empty credentials leave the route open.
func Authorization(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if username == "" && password == "" {
			c.Next()
			return
		}
		user, pass, ok := c.Request.BasicAuth()
		if !ok || !validateCredentials(user, pass, username, password) {
			log.Warn().Str("ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg(ErrUnauthorized.Error())
			api.UnauthorizedErrorHandler(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func validateCredentials(user, pass, username, password string) bool {
	userOk := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
	passOk := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
	return userOk && passOk
}
