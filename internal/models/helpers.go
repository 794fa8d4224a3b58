package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateID generates a new unique ID with the given prefix
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// GetCurrentTime returns the current time in UTC
func GetCurrentTime() time.Time {
	return time.Now().UTC()
}

// GenerateReference builds human-facing references such as INV-1718000000000-X7K2Q.
func GenerateReference(prefix string, at time.Time) string {
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteByte(referenceAlphabet[rand.Intn(len(referenceAlphabet))])
	}
	return fmt.Sprintf("%s-%d-%s", prefix, at.UnixMilli(), b.String())
}

// jsonValue and jsonScan back the JSONB columns of the relational store.
func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func jsonScan(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
}

// StringList is a list of strings persisted as a JSON array
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return jsonValue([]string{})
	}
	return jsonValue([]string(l))
}

func (l *StringList) Scan(src interface{}) error {
	return jsonScan(src, (*[]string)(l))
}
