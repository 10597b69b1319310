// Package sales holds the typed record schemas for the two JSON datasets
// landed from the object store (merchants, sales) and the reconciled fact rows.
package sales

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Rohesen/walmart-ingest/stream"
)

// Field names shared by the JSON input files, the warehouse tables and the
// stream.Record keys used between pipeline components.
const (
	FieldSaleId           = "sale_id"
	FieldSaleDate         = "sale_date"
	FieldProductId        = "product_id"
	FieldQuantitySold     = "quantity_sold"
	FieldTotalSaleAmount  = "total_sale_amount"
	FieldMerchantId       = "merchant_id"
	FieldMerchantName     = "merchant_name"
	FieldMerchantCategory = "merchant_category"
	FieldMerchantCountry  = "merchant_country"
	FieldLastUpdate       = "last_update"
)

const (
	dateFormat = "2006-01-02"
)

// timestampFormats are the layouts accepted for last_update values in the input files.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// MerchantRecord is the dimension/reference schema. It is refreshed by the bulk
// loader on each run and never deleted by the reconciler.
type MerchantRecord struct {
	MerchantId       string    `json:"merchant_id"`
	MerchantName     string    `json:"merchant_name"`
	MerchantCategory string    `json:"merchant_category"`
	MerchantCountry  string    `json:"merchant_country"`
	LastUpdate       Timestamp `json:"last_update"`
}

// SaleRecord is the staging schema, one batch per run.
type SaleRecord struct {
	SaleId          string          `json:"sale_id"`
	SaleDate        Date            `json:"sale_date"`
	ProductId       string          `json:"product_id"`
	QuantitySold    int64           `json:"quantity_sold"`
	TotalSaleAmount decimal.Decimal `json:"total_sale_amount"`
	MerchantId      string          `json:"merchant_id"`
	LastUpdate      Timestamp       `json:"last_update"`
}

// Timestamp wraps time.Time to accept the timestamp layouts found in the input files.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampFormats {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp value %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// Date wraps time.Time for DATE columns (no time component).
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	v, err := time.Parse(dateFormat, s)
	if err != nil {
		return errors.Wrapf(err, "unsupported date value %q", s)
	}
	d.Time = v
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateFormat))
}

// Validate enforces the dimension schema contract.
func (m MerchantRecord) Validate() error {
	if strings.TrimSpace(m.MerchantId) == "" {
		return errors.New("merchant record is missing merchant_id")
	}
	return nil
}

// Validate enforces the staging schema contract: non-empty key, non-negative
// quantity and amount.
func (s SaleRecord) Validate() error {
	if strings.TrimSpace(s.SaleId) == "" {
		return errors.New("sale record is missing sale_id")
	}
	if s.QuantitySold < 0 {
		return errors.Errorf("sale %v has negative quantity_sold %v", s.SaleId, s.QuantitySold)
	}
	if s.TotalSaleAmount.IsNegative() {
		return errors.Errorf("sale %v has negative total_sale_amount %v", s.SaleId, s.TotalSaleAmount)
	}
	return nil
}

// ToStreamRecord converts a MerchantRecord to the map-based Record used between components.
func (m MerchantRecord) ToStreamRecord() stream.Record {
	rec := stream.NewRecord()
	rec.SetData(FieldMerchantId, m.MerchantId)
	rec.SetData(FieldMerchantName, m.MerchantName)
	rec.SetData(FieldMerchantCategory, m.MerchantCategory)
	rec.SetData(FieldMerchantCountry, m.MerchantCountry)
	rec.SetData(FieldLastUpdate, m.LastUpdate.Time)
	return rec
}

// ToStreamRecord converts a SaleRecord to the map-based Record used between components.
func (s SaleRecord) ToStreamRecord() stream.Record {
	rec := stream.NewRecord()
	rec.SetData(FieldSaleId, s.SaleId)
	rec.SetData(FieldSaleDate, s.SaleDate.Time)
	rec.SetData(FieldProductId, s.ProductId)
	rec.SetData(FieldQuantitySold, s.QuantitySold)
	rec.SetData(FieldTotalSaleAmount, s.TotalSaleAmount)
	rec.SetData(FieldMerchantId, s.MerchantId)
	rec.SetData(FieldLastUpdate, s.LastUpdate.Time)
	return rec
}

// MerchantRecordFromJson parses one JSON line from the merchants data file,
// validates it and returns the map-based record used between components.
func MerchantRecordFromJson(line []byte) (stream.Record, error) {
	var m MerchantRecord
	if err := json.Unmarshal(line, &m); err != nil {
		return stream.NewNilRecord(), errors.Wrap(err, "unable to parse merchant record")
	}
	if err := m.Validate(); err != nil {
		return stream.NewNilRecord(), err
	}
	return m.ToStreamRecord(), nil
}

// SaleRecordFromJson parses one JSON line from the sales data file,
// validates it and returns the map-based record used between components.
func SaleRecordFromJson(line []byte) (stream.Record, error) {
	var s SaleRecord
	if err := json.Unmarshal(line, &s); err != nil {
		return stream.NewNilRecord(), errors.Wrap(err, "unable to parse sale record")
	}
	if err := s.Validate(); err != nil {
		return stream.NewNilRecord(), err
	}
	return s.ToStreamRecord(), nil
}

// StageColumns is the staging/fact key + attribute column ordering used by the
// SQL generators. The fact table carries the same columns plus the merchant
// enrichment attributes.
func StageColumns() []string {
	return []string{
		FieldSaleId,
		FieldSaleDate,
		FieldProductId,
		FieldQuantitySold,
		FieldTotalSaleAmount,
		FieldMerchantId,
		FieldLastUpdate,
	}
}

// FactColumns returns the fact table column ordering.
func FactColumns() []string {
	return []string{
		FieldSaleId,
		FieldSaleDate,
		FieldProductId,
		FieldQuantitySold,
		FieldTotalSaleAmount,
		FieldMerchantId,
		FieldMerchantName,
		FieldMerchantCategory,
		FieldMerchantCountry,
		FieldLastUpdate,
	}
}
