package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout は整備日のワイヤーフォーマット。
const DateLayout = "2006-01-02"

// MaintenanceLog は車両1台に対する1回の整備記録を表す。
// 所有者は持たず、すべての認証済みユーザーが同じ記録集合を共有する。
type MaintenanceLog struct {
	ID          int64     `db:"id" json:"id"`
	CarMake     string    `db:"car_make" json:"carMake"`
	CarModel    string    `db:"car_model" json:"carModel"`
	ServiceType string    `db:"service_type" json:"serviceType"`
	ServiceDate Date      `db:"service_date" json:"serviceDate"`
	Mileage     *int64    `db:"mileage" json:"mileage"`
	Cost        *float64  `db:"cost" json:"cost"`
	Notes       *string   `db:"notes" json:"notes"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Date は時刻を持たない日付を表す。
// JSONでは "YYYY-MM-DD" 形式、DBではDATE型として扱う。
type Date struct {
	time.Time
}

// NewDate は年月日からDateを生成する。
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate は "YYYY-MM-DD" 形式の文字列をDateに変換する。
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String は "YYYY-MM-DD" 形式の文字列を返す。
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Equal は年月日が一致するかどうかを返す。
func (d Date) Equal(other Date) bool {
	return d.String() == other.String()
}

// MarshalJSON はjson.Marshalerを実装する。ゼロ値はnullになる。
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan はsql.Scannerを実装する。
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value はdriver.Valuerを実装する。
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}
