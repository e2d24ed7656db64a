package api

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog/log"
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type QueryResponse struct {
	Data interface{} `json:"data"`
}

func writeError(c *gin.Context, message string, code int) {
	c.AbortWithStatusJSON(code, Error{
		Code:    code,
		Message: message,
	})
}

var (
	BadRequestErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusBadRequest)
	}
	UnauthorizedErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusUnauthorized)
	}
	NotFoundErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusNotFound)
	}
	InternalErrorHandler = func(c *gin.Context) {
		writeError(c, "An unexpected error occurred.", http.StatusInternalServerError)
	}
)

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// ParseQueryParams decodes the query string into dst, a pointer to a struct with schema tags.
func ParseQueryParams(query url.Values, dst interface{}) error {
	if err := decoder.Decode(dst, query); err != nil {
		log.Debug().Err(err).Msg("Error parsing query params")
		return err
	}
	return nil
}
