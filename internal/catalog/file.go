package catalog

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

//go:embed data/products.json
var defaultProducts []byte

// Default returns the catalog bundled with the binary.
func Default() (*Index, error) {
	products, err := parseJSON(defaultProducts)
	if err != nil {
		return nil, fmt.Errorf("bundled catalog: %w", err)
	}
	return NewIndex(products), nil
}

// LoadFile reads a JSON or CSV catalog once. JSON may be an array of
// products or an object mapping category to products.
func LoadFile(path string) (*Index, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer file.Close()

	var products []Product
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		products, err = parseCSV(file)
	default:
		var raw []byte
		raw, err = io.ReadAll(file)
		if err == nil {
			products, err = parseJSON(raw)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", filepath.Base(path), err)
	}
	return NewIndex(products), nil
}

func parseJSON(raw []byte) ([]Product, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []Product
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var grouped map[string][]Product
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(grouped))
	for c := range grouped {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	var out []Product
	for _, c := range categories {
		for _, p := range grouped[c] {
			if strings.TrimSpace(p.Category) == "" {
				p.Category = c
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// parseCSV expects a header row. Known columns map to product fields,
// "spec:<name>" columns become specs and pros/cons are split on '|'.
func parseCSV(r io.Reader) ([]Product, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var products []Product
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row %d: %w", line, err)
		}
		var p Product
		for i, col := range header {
			if i >= len(row) {
				break
			}
			value := strings.TrimSpace(row[i])
			if value == "" {
				continue
			}
			switch {
			case col == "id":
				p.ID = value
			case col == "name":
				p.Name = value
			case col == "category":
				p.Category = value
			case col == "brand":
				p.Brand = value
			case col == "description":
				p.Description = value
			case col == "price":
				p.Price = parseFloat(value)
			case col == "rating":
				p.Rating = parseFloat(value)
			case col == "image_url":
				p.ImageURL = value
			case col == "external_url", col == "url":
				p.ExternalURL = value
			case col == "pros":
				p.Pros = splitList(value)
			case col == "cons":
				p.Cons = splitList(value)
			case strings.HasPrefix(col, "spec:"):
				if p.Specs == nil {
					p.Specs = make(map[string]string)
				}
				p.Specs[strings.TrimPrefix(col, "spec:")] = value
			}
		}
		products = append(products, p)
	}
	return products, nil
}

func parseFloat(value string) *float64 {
	value = strings.TrimPrefix(strings.ReplaceAll(value, ",", ""), "$")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, "|") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
