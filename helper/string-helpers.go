package helper

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/shopspring/decimal"

	"github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/logger"
)

// TokensToOrderedMap splits a CSV of "a:b" tokens into an ordered map of a->b.
// A bare token "a" maps to itself.
func TokensToOrderedMap(s string) *om.OrderedMap {
	retval := om.NewOrderedMap()
	for _, tok := range CsvToStringSliceTrimSpaces(s) {
		k, v := Split(tok, ":")
		if v == "" {
			v = k
		}
		retval.Set(k, v)
	}
	return retval
}

// StringSliceToOrderedMap builds an ordered map where each slice entry maps to itself.
func StringSliceToOrderedMap(s []string) *om.OrderedMap {
	retval := om.NewOrderedMap()
	for _, v := range s {
		retval.Set(v, v)
	}
	return retval
}

// CsvToStringSliceTrimSpaces splits s on commas and trims spaces from each token.
// Empty tokens are dropped.
func CsvToStringSliceTrimSpaces(s string) []string {
	retval := make([]string, 0)
	for _, tok := range strings.Split(s, ",") {
		t := strings.TrimSpace(tok)
		if t != "" {
			retval = append(retval, t)
		}
	}
	return retval
}

// GetStringFromInterfaceUseUtcTime converts an interface{} value to a string for the
// purposes of gt/lt comparison. Times are converted to UTC for string comparison!
func GetStringFromInterfaceUseUtcTime(log logger.Logger, input interface{}) (retval string) {
	return GetStringFromInterface(log, input, true)
}

// GetStringFromInterfacePreserveTimeZone converts an interface{} value to a string.
// Times will be in local time.
func GetStringFromInterfacePreserveTimeZone(log logger.Logger, input interface{}) (retval string) {
	return GetStringFromInterface(log, input, false)
}

// GetStringFromInterface will convert interface{} value to a string.
// Optionally return Times in UTC.
func GetStringFromInterface(log logger.Logger, input interface{}, useUTC bool) (retval string) {
	switch v := input.(type) {
	case int, int16, int32, int64, int8, uint8:
		retval = fmt.Sprintf("%d", v)
	case string:
		retval = v
	case float32:
		retval = strconv.FormatFloat(float64(v), 'f', -1, 32) // use 'f' to preserve all decimal points without an exponent.
	case float64:
		retval = strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		retval = v.String()
	case time.Time:
		if useUTC { // if caller requests UTC conversion...
			retval = v.UTC().Format(constants.TimeFormatYearSecondsTZ)
		} else { // else output Local time...
			retval = v.Format(constants.TimeFormatYearSecondsTZ)
		}
	case []uint8:
		retval = string(v)
	case bool:
		retval = fmt.Sprintf("%v", v)
	case nil:
		retval = ""
	default:
		log.Panic("unhandled type while fetching string from interface: type = ", reflect.TypeOf(input), "; value = ", input)
	}
	return
}

// GetInt64FromInterface converts the numeric types produced by database scans
// to an int64.
func GetInt64FromInterface(input interface{}) (int64, error) {
	switch v := input.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []uint8:
		return strconv.ParseInt(string(v), 10, 64)
	case nil:
		return 0, fmt.Errorf("unexpected nil value while fetching int64")
	default:
		return 0, fmt.Errorf("unhandled type while fetching int64 from interface: type = %v; value = %v", reflect.TypeOf(input), input)
	}
}

// OrderedMapValuesToStringSlice builds a list of values found in ordered map 'o'.
// Output - this function modifies the supplied list 'l' and 'idx' by reference.
func OrderedMapValuesToStringSlice(log logger.Logger, o *om.OrderedMap, l *[]string, idx *int) {
	iter := o.IterFunc()
	if iter == nil {
		log.Panic("Failed to get iterFunc in OrderedMapValuesToStringSlice()")
	}
	for kv, ok := iter(); ok; kv, ok = iter() {
		(*l)[*idx] = kv.Value.(string)
		*idx++
	}
}

// GetTrueFalseStringAsBool trims spaces from s and checks if it can regexp
// (case insensitive) match "true". It returns true if there's a match else false.
func GetTrueFalseStringAsBool(s string) bool {
	re := regexp.MustCompile("(?i)true")
	return re.MatchString(strings.TrimSpace(s))
}

// Split splits s at the first occurrence of c, returning both halves without c.
func Split(s string, c string) (string, string) {
	i := strings.Index(s, c)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+len(c):]
}

// StringsToCsv joins s with commas.
func StringsToCsv(s []string) string {
	return strings.Join(s, ",")
}

// GenerateStringOfColsEqualsCols gets a string "src.col1 = tgt.col1, src.col2 = tgt.col2"
// using the colList supplied and where the comma can be whatever separator you pass in.
func GenerateStringOfColsEqualsCols(colList []string, srcAlias string, tgtAlias string, separator string) string {
	return strings.Join(GenerateSliceOfColsEqualCols(colList, srcAlias, tgtAlias), separator)
}

func GenerateSliceOfColsEqualCols(colList []string, srcAlias string, tgtAlias string) []string {
	retval := make([]string, len(colList))
	for idx, col := range colList {
		retval[idx] = fmt.Sprintf("%s.%s = %s.%s", srcAlias, col, tgtAlias, col)
	}
	return retval
}

// AtomBool is a bool safe for concurrent use.
type AtomBool struct {
	flag int32
}

func (b *AtomBool) Set(value bool) {
	var i int32
	if value {
		i = 1
	}
	atomic.StoreInt32(&b.flag, i)
}

func (b *AtomBool) Get() bool {
	return atomic.LoadInt32(&b.flag) != 0
}
