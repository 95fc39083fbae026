package classifier

// DefaultSpec is the mapping the reports were first built with: eight plate
// and side categories, one known PLU and the menu-name conventions of the
// POS exports. Full Ribs is listed before 1/2 Ribs because both match "ribs".
func DefaultSpec() Spec {
	return Spec{
		Categories: []string{
			"1/2 Chix", "1/2 Ribs", "6oz Mod", "8oz Mod",
			"Corn", "Full Ribs", "Grits", "Pots",
		},
		Codes: []CodeMapping{
			{Category: "1/2 Chix", Codes: []string{"81831"}},
		},
		Patterns: []PatternSpec{
			{Category: "Full Ribs", Match: MatchRegex, Pattern: `full.*ribs|ribs.*full`},
			{Category: "1/2 Ribs", Match: MatchRegex, Pattern: `ribs`, AppliesTo: AppliesToItem},
			{Category: "6oz Mod", Match: MatchRegex, Pattern: `\b6 ?oz\b`},
			{Category: "8oz Mod", Match: MatchRegex, Pattern: `\b8 ?oz\b`},
			{Category: "1/2 Chix", Match: MatchRegex, Pattern: `(1/2|half) chicken|\(2 ?pc\)`, AppliesTo: AppliesToItem},
			{Category: "1/2 Chix", Match: MatchRegex, Pattern: `(white|dark) meat`, ParentPattern: `chicken`, AppliesTo: AppliesToModifier},
			{Category: "Corn", Match: MatchContains, Pattern: "corn"},
			{Category: "Grits", Match: MatchContains, Pattern: "grits"},
			{Category: "Pots", Match: MatchRegex, Pattern: `\bpot`},
		},
	}
}

// Default compiles DefaultSpec. It cannot fail.
func Default() *RuleSet {
	rs, err := New(DefaultSpec())
	if err != nil {
		panic(err)
	}
	return rs
}
