package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/estate/internal/pkg/errcode"
	"github.com/xxxsen/estate/internal/pkg/response"
	"github.com/xxxsen/estate/internal/repo"
	"github.com/xxxsen/estate/internal/service"
)

type ListingHandler struct {
	listings *service.PropertyService
}

func NewListingHandler(listings *service.PropertyService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

type listingRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ListingType  string   `json:"listing_type"`
	PropertyType string   `json:"property_type"`
	Price        int64    `json:"price"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	AreaSqft     int      `json:"area_sqft"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Country      string   `json:"country"`
	PostalCode   string   `json:"postal_code"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

func (r listingRequest) toInput() service.PropertyInput {
	return service.PropertyInput{
		Title:        r.Title,
		Description:  r.Description,
		ListingType:  r.ListingType,
		PropertyType: r.PropertyType,
		Price:        r.Price,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		AreaSqft:     r.AreaSqft,
		Address:      r.Address,
		City:         r.City,
		State:        r.State,
		Country:      r.Country,
		PostalCode:   r.PostalCode,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
	}
}

func (h *ListingHandler) Create(c *gin.Context) {
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Title == "" {
		response.Error(c, errcode.ErrInvalid, "title required")
		return
	}
	p, err := h.listings.Create(c.Request.Context(), getUserID(c), req.toInput())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, p)
}

func (h *ListingHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit")
	offset := queryInt(c, "offset")
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	page, err := h.listings.List(c.Request.Context(), repo.PropertyFilter{
		OwnerID:      c.Query("owner_id"),
		City:         c.Query("city"),
		ListingType:  c.Query("listing_type"),
		PropertyType: c.Query("property_type"),
		Status:       c.Query("status"),
		Query:        c.Query("q"),
		MinPrice:     queryInt64(c, "min_price"),
		MaxPrice:     queryInt64(c, "max_price"),
		MinBedrooms:  queryInt(c, "min_bedrooms"),
		Limit:        uint(limit),
		Offset:       uint(offset),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, page)
}

func (h *ListingHandler) Get(c *gin.Context) {
	p, err := h.listings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, p)
}

func (h *ListingHandler) Update(c *gin.Context) {
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	p, err := h.listings.Update(c.Request.Context(), getActor(c), c.Param("id"), req.toInput())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, p)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *ListingHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.listings.UpdateStatus(c.Request.Context(), getActor(c), c.Param("id"), req.Status); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ListingHandler) Delete(c *gin.Context) {
	if err := h.listings.Delete(c.Request.Context(), getActor(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ListingHandler) Nearby(c *gin.Context) {
	lat, okLat := queryFloat(c, "lat")
	lng, okLng := queryFloat(c, "lng")
	if !okLat || !okLng {
		response.Error(c, errcode.ErrInvalid, "lat and lng required")
		return
	}
	radius, _ := queryFloat(c, "radius_km")
	items, err := h.listings.Nearby(c.Request.Context(), lat, lng, radius, queryInt(c, "limit"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *ListingHandler) Geocode(c *gin.Context) {
	loc, err := h.listings.Geocode(c.Request.Context(), c.Query("address"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, loc)
}
