package quest

import "testing"

func TestAnswerProof_Match(t *testing.T) {
	tests := []struct {
		name   string
		rule   AnswerProof
		answer string
		want   bool
	}{
		{"text exact", AnswerProof{Kind: ValidationText, Expected: []string{"Voltaire"}}, "Voltaire", true},
		{"text trimmed", AnswerProof{Kind: ValidationText, Expected: []string{"Vendôme"}}, "  Vendôme ", true},
		{"text case sensitive", AnswerProof{Kind: ValidationText, Expected: []string{"Paris"}}, "paris", false},
		{"text wrong", AnswerProof{Kind: ValidationText, Expected: []string{"Voltaire"}}, "Rousseau", false},
		{"text set", AnswerProof{Kind: ValidationText, Expected: []string{"Curie", "Marie Curie"}}, "Marie Curie", true},
		{"empty answer", AnswerProof{Kind: ValidationText, Expected: []string{""}}, "   ", false},
		{"choice member", AnswerProof{Kind: ValidationChoice, Expected: []string{"B"}, Choices: []string{"A", "B"}}, "B", true},
		{"choice not offered", AnswerProof{Kind: ValidationChoice, Expected: []string{"C"}, Choices: []string{"A", "B"}}, "C", false},
		{"choice case sensitive", AnswerProof{Kind: ValidationChoice, Expected: []string{"B"}}, "b", false},
		{"keypad exact", AnswerProof{Kind: ValidationKeypad, Expected: []string{"1789"}}, " 1789", true},
		{"keypad separators", AnswerProof{Kind: ValidationKeypad, Expected: []string{"1234"}}, "12-34", false},
		{"keypad wrong", AnswerProof{Kind: ValidationKeypad, Expected: []string{"1789"}}, "1790", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Match(tt.answer); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestInventoryCheck(t *testing.T) {
	check := InventoryCheck{RequiredKeys: ElementalKeys}
	keys := map[string]bool{KeyWater: true, KeyTime: true, KeyAir: true}

	if check.Satisfied(keys) {
		t.Error("Should not be satisfied with three keys")
	}
	missing := check.Missing(keys)
	if len(missing) != 1 || missing[0] != KeyFire {
		t.Errorf("Expected [%s] missing, got %v", KeyFire, missing)
	}

	keys[KeyFire] = true
	if !check.Satisfied(keys) {
		t.Error("Should be satisfied with all four keys")
	}
}

func TestRuleTypes(t *testing.T) {
	rules := map[ValidationType]Rule{
		ValidationNone:           NoProof{},
		ValidationImageAI:        ImageProof{},
		ValidationKeypad:         AnswerProof{Kind: ValidationKeypad},
		ValidationCheckInventory: InventoryCheck{},
	}
	for want, r := range rules {
		if r.Type() != want {
			t.Errorf("%T.Type() = %s, want %s", r, r.Type(), want)
		}
	}
}
