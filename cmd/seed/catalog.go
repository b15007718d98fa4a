package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/safar/stockbill/internal/models"
)

type catalogFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name        string          `yaml:"name"`
	Category    string          `yaml:"category"`
	Subcategory string          `yaml:"subcategory"`
	Price       string          `yaml:"price"`
	Quantity    int             `yaml:"quantity"`
	Variations  []seedVariation `yaml:"variations"`
}

type seedVariation struct {
	Size     string `yaml:"size"`
	Price    string `yaml:"price"`
	Quantity int    `yaml:"quantity"`
}

func loadCatalog(path string) ([]models.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %s: %w", path, err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]models.Product, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}

	products := make([]models.Product, 0, len(file.Products))
	for i, sp := range file.Products {
		p, err := sp.product()
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i+1, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func (sp seedProduct) product() (models.Product, error) {
	name := strings.TrimSpace(sp.Name)
	if name == "" {
		return models.Product{}, fmt.Errorf("name is required")
	}

	price, err := parsePrice(sp.Price)
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", name, err)
	}

	if sp.Quantity < 0 {
		return models.Product{}, fmt.Errorf("%s: quantity must not be negative", name)
	}

	p := models.Product{
		Name:        name,
		Category:    sp.Category,
		Subcategory: sp.Subcategory,
		Price:       price,
		Quantity:    sp.Quantity,
	}
	for _, sv := range sp.Variations {
		vp, err := parsePrice(sv.Price)
		if err != nil {
			return models.Product{}, fmt.Errorf("%s %s: %w", name, sv.Size, err)
		}
		if sv.Quantity < 0 {
			return models.Product{}, fmt.Errorf("%s %s: quantity must not be negative", name, sv.Size)
		}
		p.Variations = append(p.Variations, models.Variation{Size: sv.Size, Price: vp, Quantity: sv.Quantity})
	}
	return p, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q", s)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("price must not be negative")
	}
	return price, nil
}
