package maintenance

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/maintlog/internal/model"
)

// RecordInput は整備記録の作成・更新リクエストを表す。
// 更新は全項目置き換えのため、任意項目を省略するとNULLになる。
type RecordInput struct {
	CarMake     string   `json:"carMake" validate:"notblank,max=100"`
	CarModel    string   `json:"carModel" validate:"notblank,max=100"`
	ServiceType string   `json:"serviceType" validate:"notblank,max=200"`
	ServiceDate string   `json:"serviceDate" validate:"notblank,datetime=2006-01-02"`
	Mileage     *int64   `json:"mileage" validate:"omitempty,min=0,max=2147483647"`
	Cost        *float64 `json:"cost" validate:"omitempty,min=0,max=99999999.99,cents"`
	Notes       *string  `json:"notes" validate:"omitempty,max=10000"`
}

// newValidator はRecordInput用のバリデーターを生成する。
// エラーのフィールド名にはJSON名を使う。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// 空白のみの文字列を未入力として扱う
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	// 金額は小数点以下2桁まで
	_ = v.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
		scaled := fl.Field().Float() * 100
		return math.Abs(scaled-math.Round(scaled)) < 1e-6
	})

	return v
}

// validateInput は入力を検証し、問題のあるフィールド名をAPIErrorにまとめて返す。
func validateInput(v *validator.Validate, in *RecordInput) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	seen := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		if seen[fe.Field()] {
			continue
		}
		seen[fe.Field()] = true
		fields = append(fields, fe.Field())
	}
	return model.NewValidationError(fields)
}

// toModel は検証済みの入力を整備記録に変換する。
func (in *RecordInput) toModel() (*model.MaintenanceLog, error) {
	date, err := model.ParseDate(strings.TrimSpace(in.ServiceDate))
	if err != nil {
		return nil, model.NewValidationError([]string{"serviceDate"})
	}
	return &model.MaintenanceLog{
		CarMake:     in.CarMake,
		CarModel:    in.CarModel,
		ServiceType: in.ServiceType,
		ServiceDate: date,
		Mileage:     in.Mileage,
		Cost:        in.Cost,
		Notes:       in.Notes,
	}, nil
}
