package quest

import (
	"strings"
)

// ValidationType names how a quest is proven.
type ValidationType string

const (
	ValidationNone           ValidationType = "NONE"
	ValidationImageAI        ValidationType = "IMAGE_AI"
	ValidationText           ValidationType = "TEXT"
	ValidationChoice         ValidationType = "CHOICE"
	ValidationKeypad         ValidationType = "KEYPAD"
	ValidationCheckInventory ValidationType = "CHECK_INVENTORY"
)

// Rule is the closed set of validation rules. Only the types in this file
// implement it.
type Rule interface {
	Type() ValidationType
	rule()
}

// NoProof is satisfied by any attempt. Used for narrative quests.
type NoProof struct{}

// ImageProof is judged by the image classifier using Prompt.
type ImageProof struct {
	Prompt string
}

// AnswerProof compares a submitted answer against Expected.
type AnswerProof struct {
	Kind     ValidationType // TEXT, CHOICE or KEYPAD
	Expected []string
	Choices  []string
}

// InventoryCheck passes when every required key exists in the global key set.
type InventoryCheck struct {
	RequiredKeys []string
}

func (NoProof) Type() ValidationType        { return ValidationNone }
func (ImageProof) Type() ValidationType     { return ValidationImageAI }
func (a AnswerProof) Type() ValidationType  { return a.Kind }
func (InventoryCheck) Type() ValidationType { return ValidationCheckInventory }

func (NoProof) rule()        {}
func (ImageProof) rule()     {}
func (AnswerProof) rule()    {}
func (InventoryCheck) rule() {}

// Match reports whether the trimmed answer is exactly one of Expected.
// CHOICE answers must also be one of Choices when choices are declared.
func (a AnswerProof) Match(answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	if a.Kind == ValidationChoice && len(a.Choices) > 0 && !contains(a.Choices, answer) {
		return false
	}
	for _, expected := range a.Expected {
		if strings.TrimSpace(expected) == answer {
			return true
		}
	}
	return false
}

// Satisfied reports whether keys holds every required key.
func (c InventoryCheck) Satisfied(keys map[string]bool) bool {
	for _, k := range c.RequiredKeys {
		if !keys[k] {
			return false
		}
	}
	return true
}

// Missing lists required keys absent from keys, in declaration order.
func (c InventoryCheck) Missing(keys map[string]bool) []string {
	var missing []string
	for _, k := range c.RequiredKeys {
		if !keys[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.TrimSpace(v) == s {
			return true
		}
	}
	return false
}
