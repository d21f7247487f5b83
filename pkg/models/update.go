package models

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

var (
	ErrUndeclaredField = errors.New("update touches undeclared field")
	ErrInvalidUpdate   = errors.New("invalid update")
)

// FieldSet is a bit set of WorkflowState fields a node may write.
type FieldSet uint16

const (
	FieldQueryType FieldSet = 1 << iota
	FieldSQLTaskType
	FieldStructuredData
	FieldChartConfig
	FieldChartImage
	FieldAnswer
	FieldQualityScore
	FieldRetryCount
	FieldError
	FieldValidation
)

var fieldNames = []struct {
	field FieldSet
	name  string
}{
	{FieldQueryType, "query_type"},
	{FieldSQLTaskType, "sql_task_type"},
	{FieldStructuredData, "structured_data"},
	{FieldChartConfig, "chart_config"},
	{FieldChartImage, "chart_image"},
	{FieldAnswer, "answer"},
	{FieldQualityScore, "quality_score"},
	{FieldRetryCount, "retry_count"},
	{FieldError, "error"},
	{FieldValidation, "validation"},
}

func Fields(fields ...FieldSet) FieldSet {
	var set FieldSet
	for _, f := range fields {
		set |= f
	}

	return set
}

func (f FieldSet) Has(other FieldSet) bool {
	return f&other == other
}

func (f FieldSet) Len() int {
	return bits.OnesCount16(uint16(f))
}

func (f FieldSet) String() string {
	names := make([]string, 0, f.Len())
	for _, fn := range fieldNames {
		if f&fn.field != 0 {
			names = append(names, fn.name)
		}
	}

	return strings.Join(names, ",")
}

// Update is a node's partial state change. Only non-nil fields (and ClearError) are applied.
type Update struct {
	QueryType      *QueryType
	SQLTaskType    *SQLTaskType
	StructuredData *StructuredData
	ChartConfig    *ChartConfig
	ChartImage     *string
	Answer         *string
	QualityScore   *int
	RetryCount     *int
	Error          *string
	ClearError     bool
	Validation     *ValidationReport
}

// Fields returns the set of state fields this update writes.
func (u Update) Fields() FieldSet {
	var set FieldSet

	if u.QueryType != nil {
		set |= FieldQueryType
	}

	if u.SQLTaskType != nil {
		set |= FieldSQLTaskType
	}

	if u.StructuredData != nil {
		set |= FieldStructuredData
	}

	if u.ChartConfig != nil {
		set |= FieldChartConfig
	}

	if u.ChartImage != nil {
		set |= FieldChartImage
	}

	if u.Answer != nil {
		set |= FieldAnswer
	}

	if u.QualityScore != nil {
		set |= FieldQualityScore
	}

	if u.RetryCount != nil {
		set |= FieldRetryCount
	}

	if u.Error != nil || u.ClearError {
		set |= FieldError
	}

	if u.Validation != nil {
		set |= FieldValidation
	}

	return set
}

func (u Update) IsEmpty() bool {
	return u.Fields() == 0
}

// Validate checks that the update only writes fields in allowed and that every value is in its domain.
func (u Update) Validate(allowed FieldSet) error {
	if extra := u.Fields() &^ allowed; extra != 0 {
		return fmt.Errorf("%w: %s", ErrUndeclaredField, extra)
	}

	if u.QueryType != nil && !u.QueryType.Valid() {
		return fmt.Errorf("%w: query_type %q", ErrInvalidUpdate, *u.QueryType)
	}

	if u.SQLTaskType != nil && !u.SQLTaskType.Valid() {
		return fmt.Errorf("%w: sql_task_type %q", ErrInvalidUpdate, *u.SQLTaskType)
	}

	if u.QualityScore != nil && (*u.QualityScore < 0 || *u.QualityScore > MaxQualityScore) {
		return fmt.Errorf("%w: quality_score %d out of range", ErrInvalidUpdate, *u.QualityScore)
	}

	if u.RetryCount != nil && (*u.RetryCount < 0 || *u.RetryCount > MaxRetries) {
		return fmt.Errorf("%w: retry_count %d exceeds %d", ErrInvalidUpdate, *u.RetryCount, MaxRetries)
	}

	if u.Error != nil && u.ClearError {
		return fmt.Errorf("%w: error both set and cleared", ErrInvalidUpdate)
	}

	return nil
}

// Apply merges the update into the state. Callers validate first.
func (s *WorkflowState) Apply(u Update) {
	if u.QueryType != nil {
		s.QueryType = *u.QueryType
	}

	if u.SQLTaskType != nil {
		s.SQLTaskType = *u.SQLTaskType
	}

	if u.StructuredData != nil {
		s.StructuredData = u.StructuredData
	}

	if u.ChartConfig != nil {
		s.ChartConfig = u.ChartConfig
	}

	if u.ChartImage != nil {
		s.ChartImage = u.ChartImage
	}

	if u.Answer != nil {
		s.Answer = *u.Answer
	}

	if u.QualityScore != nil {
		s.QualityScore = *u.QualityScore
	}

	if u.RetryCount != nil {
		s.RetryCount = *u.RetryCount
	}

	if u.ClearError {
		s.Error = ""
	}

	if u.Error != nil {
		s.Error = *u.Error
	}

	if u.Validation != nil {
		s.Validation = u.Validation
	}
}
