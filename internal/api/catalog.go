package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"decision-matrix/backend/internal/catalog"
)

var errNoCatalog = errors.New("product catalog is not configured")

func (s *Server) handleCatalogCategories(c *gin.Context) {
	if s.catalog == nil {
		s.renderError(c, http.StatusServiceUnavailable, errNoCatalog)
		return
	}
	c.JSON(http.StatusOK, s.catalog.Categories())
}

// handleCatalogProducts filters by category, by fuzzy query, or both.
func (s *Server) handleCatalogProducts(c *gin.Context) {
	if s.catalog == nil {
		s.renderError(c, http.StatusServiceUnavailable, errNoCatalog)
		return
	}
	category := strings.TrimSpace(c.Query("category"))
	query := strings.TrimSpace(c.Query("q"))

	var products []catalog.Product
	switch {
	case query != "":
		products = s.catalog.Search(query)
		if category != "" {
			filtered := products[:0:0]
			for _, p := range products {
				if strings.EqualFold(p.Category, category) {
					filtered = append(filtered, p)
				}
			}
			products = filtered
		}
	case category != "":
		products = s.catalog.GetByCategory(category)
	default:
		s.renderError(c, http.StatusBadRequest, errors.New("category or q is required"))
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	c.JSON(http.StatusOK, products)
}

func (s *Server) handleCatalogProduct(c *gin.Context) {
	if s.catalog == nil {
		s.renderError(c, http.StatusServiceUnavailable, errNoCatalog)
		return
	}
	id := trimmedParam(c, "id")
	p, ok := s.catalog.Get(id)
	if !ok {
		s.renderError(c, http.StatusNotFound, fmt.Errorf("product %s not found", id))
		return
	}
	c.JSON(http.StatusOK, p)
}
