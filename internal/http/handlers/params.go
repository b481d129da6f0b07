package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// pathID parses an integer path parameter, responding 400 itself on garbage.
func pathID(ctx *gin.Context, name string) (int64, bool) {
	raw := ctx.Param(name)

	id, err := strconv.ParseInt(raw, 10, 64)

	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "Invalid "+name+" path parameter", gin.H{"param": name})
		return 0, false
	}

	return id, true
}
