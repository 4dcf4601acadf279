// Package catalog loads product catalogs from XLSX workbooks.
//
// Workbook layout (first sheet):
//
//	row 2    attribute type codes (hrd, sft, rlt, rcl, prc) above each attribute column
//	row 4    column titles; attribute columns hold the attribute title
//	row 5+   one product per row
//
// Columns A-G are title, class, subclass, article, manufacturer, additional
// article and series. Every following column is an attribute.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

const (
	typeRow   = 1
	titleRow  = 3
	firstBody = 4
)

const (
	colTitle = iota
	colClass
	colSubclass
	colArticle
	colManufacturer
	colAdditionalArticle
	colSeries
	firstAttributeCol
)

// RowError reports the workbook row (1-based) a failure comes from
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Result summarizes an import
type Result struct {
	Rows     int     `json:"rows"`
	Products []int64 `json:"products"`
}

// Importer validates a whole workbook against the catalog and only then
// creates its products
type Importer struct {
	catalog domain.Catalog
	logger  zerolog.Logger
}

// NewImporter creates an importer writing into catalog
func NewImporter(catalog domain.Catalog, logger zerolog.Logger) *Importer {
	return &Importer{catalog: catalog, logger: logger}
}

// ImportFile imports the workbook at path
func (i *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return i.importWorkbook(ctx, f)
}

// Import imports a workbook read from r
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return i.importWorkbook(ctx, f)
}

type attributeColumn struct {
	index int
	typ   domain.AttributeType
	title string
}

type plannedProduct struct {
	row     int
	product domain.Product
	values  []domain.AttributeValue
}

func (i *Importer) importWorkbook(ctx context.Context, f *excelize.File) (*Result, error) {
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidRequest)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) <= firstBody {
		return nil, fmt.Errorf("%w: expected attribute types in row %d, titles in row %d and products from row %d",
			domain.ErrInvalidRequest, typeRow+1, titleRow+1, firstBody+1)
	}

	columns, err := attributeColumns(rows[typeRow], rows[titleRow])
	if err != nil {
		return nil, err
	}

	var plan []plannedProduct
	seen := make(map[string]int)
	for idx := firstBody; idx < len(rows); idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := rows[idx]
		if isEmptyRow(row) {
			continue
		}

		planned, err := i.planRow(ctx, row, columns)
		if err != nil {
			return nil, &RowError{Row: idx + 1, Err: err}
		}
		key := fmt.Sprintf("%d/%s", planned.product.ManufacturerID, planned.product.Article)
		if first, dup := seen[key]; dup {
			return nil, &RowError{Row: idx + 1, Err: fmt.Errorf("%w: article %q repeats row %d",
				domain.ErrAmbiguousMatch, planned.product.Article, first)}
		}
		seen[key] = idx + 1
		planned.row = idx + 1
		plan = append(plan, planned)

		if len(plan)%100 == 0 {
			i.logger.Debug().Int("rows", len(plan)).Msg("import rows validated")
		}
	}

	result := &Result{Rows: len(plan), Products: make([]int64, 0, len(plan))}
	for _, p := range plan {
		id, err := i.catalog.SaveProduct(ctx, p.product, p.values)
		if err != nil {
			return result, &RowError{Row: p.row, Err: err}
		}
		result.Products = append(result.Products, id)
	}

	i.logger.Info().Str("sheet", sheet).Int("products", len(result.Products)).Msg("catalog imported")
	return result, nil
}

func attributeColumns(types, titles []string) ([]attributeColumn, error) {
	var columns []attributeColumn
	for idx := firstAttributeCol; idx < len(titles); idx++ {
		title := strings.TrimSpace(titles[idx])
		code := strings.TrimSpace(cell(types, idx))
		if title == "" && code == "" {
			continue
		}
		if title == "" {
			return nil, fmt.Errorf("%w: column %d has type %q but no title", domain.ErrInvalidRequest, idx+1, code)
		}
		typ, err := domain.ParseAttributeType(code)
		if err != nil {
			return nil, &RowError{Row: typeRow + 1, Err: err}
		}
		columns = append(columns, attributeColumn{index: idx, typ: typ, title: title})
	}
	return columns, nil
}

func (i *Importer) planRow(ctx context.Context, row []string, columns []attributeColumn) (plannedProduct, error) {
	p := domain.Product{
		Title:             strings.TrimSpace(cell(row, colTitle)),
		Article:           strings.TrimSpace(cell(row, colArticle)),
		AdditionalArticle: strings.TrimSpace(cell(row, colAdditionalArticle)),
		Series:            strings.TrimSpace(cell(row, colSeries)),
	}
	class := strings.TrimSpace(cell(row, colClass))
	subclass := strings.TrimSpace(cell(row, colSubclass))
	manufacturer := strings.TrimSpace(cell(row, colManufacturer))

	required := []struct{ name, value string }{
		{"title", p.Title}, {"class", class}, {"subclass", subclass}, {"article", p.Article}, {"manufacturer", manufacturer},
	}
	for _, r := range required {
		if r.value == "" {
			return plannedProduct{}, fmt.Errorf("%w: missing %s", domain.ErrInvalidRequest, r.name)
		}
	}

	m, err := i.catalog.FindManufacturerByTitle(ctx, manufacturer)
	if err != nil {
		return plannedProduct{}, err
	}
	category, err := i.catalog.FindCategoryByTitle(ctx, class, subclass)
	if err != nil {
		return plannedProduct{}, err
	}
	p.ManufacturerID = m.ID
	p.CategoryID = category.ID

	existing, err := i.catalog.FindProductsByArticle(ctx, p.Article, m.ID)
	if err != nil {
		return plannedProduct{}, err
	}
	if len(existing) > 0 {
		return plannedProduct{}, fmt.Errorf("%w: product %q of %s already exists", domain.ErrAmbiguousMatch, p.Article, m.Title)
	}

	var values []domain.AttributeValue
	for _, col := range columns {
		raw := strings.TrimSpace(cell(row, col.index))
		if raw == "" {
			continue
		}
		attr, err := i.catalog.FindAttribute(ctx, category.ID, col.typ, col.title)
		if err != nil {
			return plannedProduct{}, err
		}
		value, err := i.parseValue(ctx, attr, raw)
		if err != nil {
			return plannedProduct{}, err
		}
		values = append(values, domain.AttributeValue{AttributeID: attr.ID, Value: value})
	}

	return plannedProduct{product: p, values: values}, nil
}

// parseValue reads a cell by the attribute's kind: fixed attributes look the
// text up among their values, continuous ones accept decimal commas
func (i *Importer) parseValue(ctx context.Context, attr *domain.Attribute, raw string) (domain.Value, error) {
	if attr.IsFixed {
		fv, err := i.catalog.FindFixedValue(ctx, attr.ID, raw)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.FixedRef(fv.ID), nil
	}

	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return domain.Value{}, fmt.Errorf("%w: attribute %q expects a number, got %q",
			domain.ErrDataIntegrity, attr.Title, raw)
	}
	return domain.Numeric(n), nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// IsRowError reports whether err carries a workbook row
func IsRowError(err error) bool {
	var rowErr *RowError
	return errors.As(err, &rowErr)
}
