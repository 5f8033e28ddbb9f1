package models

// TargetType identifies which domain owns the item a reminder or suggestion
// points at.
type TargetType string

const (
	TargetEvent TargetType = "EVENT"
	TargetTodo  TargetType = "TODO"
)

func (t TargetType) Valid() bool {
	return t == TargetEvent || t == TargetTodo
}
