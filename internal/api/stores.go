package api

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/sol1corejz/voidshop/internal/models"
)

const maxPageSize = 100

type SearchParams struct {
	Category string
	City     string
	Limit    int
	Offset   int
}

func (c *Client) GetCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := c.do(ctx, "/api/stores/categories/", requestOptions{timeout: 8 * time.Second}, &categories)
	return categories, err
}

func (c *Client) SearchProducts(ctx context.Context, query string, params SearchParams) ([]models.Product, error) {
	values := url.Values{}
	values.Set("query", query)
	if params.Category != "" {
		values.Set("category", params.Category)
	}
	if params.City != "" {
		values.Set("city", params.City)
	}
	if params.Limit > 0 {
		values.Set("limit", strconv.Itoa(min(params.Limit, maxPageSize)))
	}
	if params.Offset > 0 {
		values.Set("offset", strconv.Itoa(params.Offset))
	}

	var products []models.Product
	err := c.do(ctx, "/api/stores/search/?"+values.Encode(), requestOptions{timeout: 15 * time.Second}, &products)
	return products, err
}
