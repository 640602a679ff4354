package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Пара ключ/значение из метаданных тендера
type Annotation struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Annotations хранит упорядоченный список аннотаций в JSONB-колонке.
type Annotations []Annotation

// Add добавляет аннотацию, пустые значения пропускаются.
func (a *Annotations) Add(key, value string) {
	if value == "" {
		return
	}
	*a = append(*a, Annotation{Key: key, Value: value})
}

// Get возвращает первое значение по ключу.
func (a Annotations) Get(key string) (string, bool) {
	for _, ann := range a {
		if ann.Key == key {
			return ann.Value, true
		}
	}
	return "", false
}

func (a Annotations) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *Annotations) Scan(src any) error {
	return scanJSON(src, a)
}

// Детали записи журнала (JSONB)
type Payload map[string]any

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func (p *Payload) Scan(src any) error {
	return scanJSON(src, p)
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported json column type")
	}
}
