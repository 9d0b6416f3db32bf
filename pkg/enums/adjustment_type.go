package enums

// AdjustmentType classifies a discrete change to available stock.
type AdjustmentType string

const (
	AdjustmentTypeIncrease   AdjustmentType = "increase"
	AdjustmentTypeDecrease   AdjustmentType = "decrease"
	AdjustmentTypeCorrection AdjustmentType = "correction"
	AdjustmentTypeWriteOff   AdjustmentType = "write_off"
)

func (t AdjustmentType) IsValid() bool {
	switch t {
	case AdjustmentTypeIncrease, AdjustmentTypeDecrease, AdjustmentTypeCorrection, AdjustmentTypeWriteOff:
		return true
	default:
		return false
	}
}
