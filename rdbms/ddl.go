package rdbms

import (
	"fmt"
)

// DDL for the warehouse objects used by the ingestion pipeline. Types mirror the
// JSON dataset schemas: merchants dimension, sales staging and the reconciled fact.

func MerchantsTableDDL(table SchemaTable) string {
	return fmt.Sprintf(`create table if not exists %v (
  merchant_id string not null,
  merchant_name string,
  merchant_category string,
  merchant_country string,
  last_update timestamp_tz
) cluster by (merchant_category, merchant_country)`, table)
}

func SalesStageTableDDL(table SchemaTable) string {
	return fmt.Sprintf(`create table if not exists %v (
  sale_id string not null,
  sale_date date,
  product_id string,
  quantity_sold number(18,0),
  total_sale_amount number(18,2),
  merchant_id string,
  last_update timestamp_tz
) cluster by (merchant_id)`, table)
}

func SalesFactTableDDL(table SchemaTable) string {
	return fmt.Sprintf(`create table if not exists %v (
  sale_id string not null,
  sale_date date,
  product_id string,
  quantity_sold number(18,0),
  total_sale_amount number(18,2),
  merchant_id string,
  merchant_name string,
  merchant_category string,
  merchant_country string,
  last_update timestamp_tz
) cluster by (merchant_id, product_id)`, table)
}
