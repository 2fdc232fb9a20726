package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/estate/internal/config"
	"github.com/xxxsen/estate/internal/pkg/response"
)

type FeaturesHandler struct {
	properties config.Properties
}

func NewFeaturesHandler(properties config.Properties) *FeaturesHandler {
	return &FeaturesHandler{properties: properties}
}

func (h *FeaturesHandler) Get(c *gin.Context) {
	response.Success(c, gin.H{"properties": h.properties})
}
