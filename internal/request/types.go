package request

import (
	"errors"
	"fmt"
)

// Type is the closed set of payment request kinds.
type Type string

const (
	TypeOvertime      Type = "overtime"
	TypeBonus         Type = "bonus"
	TypeReimbursement Type = "reimbursement"
	TypeSalaryAdvance Type = "salary_advance"
	TypeCommission    Type = "commission"
)

var ErrUnknownType = errors.New("unknown request type")

type TypeInfo struct {
	Value       Type   `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var catalog = []TypeInfo{
	{TypeOvertime, "Overtime Payment", "Compensation for hours worked beyond regular schedule"},
	{TypeBonus, "Performance Bonus", "Additional compensation for exceptional performance"},
	{TypeReimbursement, "Expense Reimbursement", "Reimbursement for business-related expenses"},
	{TypeSalaryAdvance, "Salary Advance", "Advance payment against future salary"},
	{TypeCommission, "Sales Commission", "Commission payment for sales achievements"},
}

// Types returns the request type catalog in display order.
func Types() []TypeInfo {
	out := make([]TypeInfo, len(catalog))
	copy(out, catalog)
	return out
}

func ParseType(s string) (Type, error) {
	for _, info := range catalog {
		if string(info.Value) == s {
			return info.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func (t Type) Label() string {
	for _, info := range catalog {
		if info.Value == t {
			return info.Label
		}
	}
	return string(t)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
