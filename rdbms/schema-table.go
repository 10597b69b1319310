package rdbms

import (
	"strings"
)

// SchemaTable holds a warehouse object name of the form [<schema>.]<table>.
type SchemaTable struct {
	SchemaTable string `errorTxt:"[<schema>.]<object>" mandatory:"yes"`
}

func NewSchemaTable(schema string, table string) SchemaTable {
	if schema == "" {
		return SchemaTable{table}
	}
	return SchemaTable{schema + "." + table}
}

func (st SchemaTable) String() string {
	return st.SchemaTable
}

func (st *SchemaTable) GetTable() string {
	i := strings.Index(st.SchemaTable, ".")
	if i < 0 { // if we have just a table...
		return st.SchemaTable
	}
	return st.SchemaTable[i+1:]
}

func (st *SchemaTable) GetSchema() string {
	i := strings.Index(st.SchemaTable, ".")
	if i < 0 { // if we have just a table...
		return ""
	}
	return st.SchemaTable[:i]
}

// AppendSuffix returns the object name with suffix added to the table part.
func (st *SchemaTable) AppendSuffix(suffix string) string {
	return st.SchemaTable + suffix
}
