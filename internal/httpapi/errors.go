package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/digitallysavvy/onlocal-gateway/internal/gatewayerr"
	"github.com/digitallysavvy/onlocal-gateway/pkg/chatapi"
)

// writeError maps err to the gateway's JSON error envelope and HTTP
// status, wrapping err as an internal error if it isn't already a
// gatewayerr.Error.
func writeError(c *gin.Context, err error) {
	gwErr := gatewayerr.Wrap(err)
	c.JSON(gwErr.HTTPStatus(), chatapi.ErrorResponse{
		Error: chatapi.ErrorBody{
			Message: gwErr.Message,
			Type:    gwErr.OpenAIType(),
		},
	})
}
