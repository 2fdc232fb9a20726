package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/estate/internal/middleware"
	"github.com/xxxsen/estate/internal/pkg/errcode"
	appErr "github.com/xxxsen/estate/internal/pkg/errors"
	"github.com/xxxsen/estate/internal/pkg/response"
	"github.com/xxxsen/estate/internal/service"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func getActor(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: c.GetString(middleware.ContextUserIDKey),
		Role:   c.GetString(middleware.ContextUserRoleKey),
	}
}

func getTokenExpiry(c *gin.Context) time.Time {
	v, _ := c.Get(middleware.ContextTokenExpKey)
	exp, _ := v.(time.Time)
	return exp
}

func queryInt(c *gin.Context, name string) int {
	value := c.Query(name)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func queryInt64(c *gin.Context, name string) int64 {
	value := c.Query(name)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func queryFloat(c *gin.Context, name string) (float64, bool) {
	value := c.Query(name)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, appErr.ErrExpired):
		response.Error(c, errcode.ErrExpired, "code expired")
	case errors.Is(err, appErr.ErrRegisterDisabled):
		response.Error(c, errcode.ErrRegisterDisabled, "register disabled")
	case errors.Is(err, appErr.ErrGeocodeUnavailable):
		response.Error(c, errcode.ErrGeocodeUnavailable, "geocode unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
