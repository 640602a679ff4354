package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Все функции нормализации тотальны: битая ячейка не должна прерывать лист.

// NormalizeText обрезает пробелы и схлопывает внутренние; пустое значение -> def.
func NormalizeText(raw any, def string) string {
	var s string
	switch v := raw.(type) {
	case nil:
		return def
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return def
	}
	return s
}

var (
	amountRE = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	croreRE  = regexp.MustCompile(`(?i)\b(crores?|cr)\b`)
	lakhRE   = regexp.MustCompile(`(?i)\b(lakhs?|lacs?)\b`)

	maxAmount = decimal.NewFromInt(math.MaxInt64)
)

// NormalizeCurrency превращает денежное значение в неотрицательное целое (рубли/рупии,
// округление до целого). Нераспознанное значение -> 0.
func NormalizeCurrency(raw any) int64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case int:
		return clampAmount(decimal.NewFromInt(int64(v)))
	case int64:
		return clampAmount(decimal.NewFromInt(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return clampAmount(decimal.NewFromFloat(v))
	case decimal.Decimal:
		return clampAmount(v)
	case string:
		return parseAmount(v)
	default:
		return parseAmount(fmt.Sprint(v))
	}
}

func parseAmount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// сырые числовые ячейки, в т.ч. экспоненциальная запись 1.5E+07
	if d, err := decimal.NewFromString(s); err == nil {
		return clampAmount(d)
	}

	cleaned := strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(s)
	m := amountRE.FindString(cleaned)
	if m == "" {
		return 0
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return 0
	}
	switch {
	case croreRE.MatchString(s):
		d = d.Mul(decimal.New(1, 7))
	case lakhRE.MatchString(s):
		d = d.Mul(decimal.New(1, 5))
	}
	return clampAmount(d)
}

func clampAmount(d decimal.Decimal) int64 {
	if d.IsNegative() {
		return 0
	}
	d = d.Round(0)
	if d.GreaterThan(maxAmount) {
		return math.MaxInt64
	}
	return d.IntPart()
}

// Числа в этом диапазоне считаются серийными датами Excel (1954..2119).
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

// Неоднозначные числовые даты читаются как день-месяц-год.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 3:04 PM",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006 3:04 PM",
	"2-1-2006",
	"2.1.2006",
	"2-Jan-2006 3:04 PM",
	"2-Jan-2006 15:04",
	"2-Jan-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-06",
	"2/1/06",
}

// ParseDate пытается распознать дату; ok=false, если это не удалось.
func ParseDate(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case float64:
		return excelSerialDate(v)
	case int:
		return excelSerialDate(float64(v))
	case int64:
		return excelSerialDate(float64(v))
	case string:
		return parseDateString(v)
	default:
		return parseDateString(fmt.Sprint(v))
	}
}

// NormalizeDate возвращает распознанную дату или def. Никогда не паникует.
func NormalizeDate(raw any, def time.Time) time.Time {
	if t, ok := ParseDate(raw); ok {
		return t
	}
	return def
}

func parseDateString(s string) (time.Time, bool) {
	s = NormalizeText(s, "")
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return excelSerialDate(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func excelSerialDate(serial float64) (time.Time, bool) {
	if serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeList превращает ячейку в список строк: JSON-массив или разделители , ; | перевод строки.
func NormalizeList(raw any) []string {
	out := []string{}
	switch v := raw.(type) {
	case nil:
		return out
	case []string:
		for _, item := range v {
			if item = NormalizeText(item, ""); item != "" {
				out = append(out, item)
			}
		}
		return out
	case string:
		return splitList(v)
	default:
		return splitList(fmt.Sprint(v))
	}
}

func splitList(s string) []string {
	out := []string{}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var items []any
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			for _, item := range items {
				if item == nil {
					continue
				}
				if text := NormalizeText(fmt.Sprint(item), ""); text != "" {
					out = append(out, text)
				}
			}
			return out
		}
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n' || r == '\r'
	})
	for _, p := range parts {
		if p = NormalizeText(p, ""); p != "" {
			out = append(out, p)
		}
	}
	return out
}
