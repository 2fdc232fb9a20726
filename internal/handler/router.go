package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/estate/internal/middleware"
	"github.com/xxxsen/estate/internal/model"
	"github.com/xxxsen/estate/internal/tokenstore"
)

type RouterDeps struct {
	Auth             *AuthHandler
	Features         *FeaturesHandler
	Listings         *ListingHandler
	Files            *FileHandler
	JWTSecret        []byte
	Blacklist        tokenstore.Blacklist
	SendCodeInterval time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/features", deps.Features.Get)

	api.POST("/auth/send_code", middleware.RateLimit(deps.SendCodeInterval), deps.Auth.SendCode)
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)
	api.POST("/auth/reset_password", deps.Auth.ResetPassword)

	api.GET("/listings", deps.Listings.List)
	api.GET("/listings/nearby", deps.Listings.Nearby)
	api.GET("/listings/:id", deps.Listings.Get)
	api.GET("/files/:key", deps.Files.Get)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret, deps.Blacklist))
	authGroup.POST("/auth/logout", deps.Auth.Logout)
	authGroup.GET("/auth/me", deps.Auth.Me)
	authGroup.PUT("/auth/password", deps.Auth.ChangePassword)
	authGroup.GET("/geocode", deps.Listings.Geocode)

	agentGroup := authGroup.Group("")
	agentGroup.Use(middleware.RequireRole(model.RoleAgent, model.RoleAdmin))
	agentGroup.POST("/listings", deps.Listings.Create)
	agentGroup.PUT("/listings/:id", deps.Listings.Update)
	agentGroup.PUT("/listings/:id/status", deps.Listings.UpdateStatus)
	agentGroup.DELETE("/listings/:id", deps.Listings.Delete)
	agentGroup.POST("/listings/:id/images", deps.Files.UploadListingImage)
}
