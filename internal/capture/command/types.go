package command

// SourceType identifies how a captured value was produced.
type SourceType string

const (
	// SourceManual indicates an operator-entered value.
	SourceManual SourceType = "manual"
	// SourceAnchor indicates a value produced by an anchor rule match.
	SourceAnchor SourceType = "anchor"
	// SourceZone indicates a value extracted from a page zone.
	SourceZone SourceType = "zone"
)

// Valid reports whether the source type is a known value.
func (s SourceType) Valid() bool {
	switch s {
	case SourceManual, SourceAnchor, SourceZone:
		return true
	}
	return false
}

// MatchType identifies how a dictionary rule matches input values.
type MatchType string

const (
	// MatchExact requires the full input to equal the match value.
	MatchExact MatchType = "exact"
	// MatchRegex treats the match value as a regular expression.
	MatchRegex MatchType = "regex"
)

// Valid reports whether the match type is a known value.
func (m MatchType) Valid() bool {
	switch m {
	case MatchExact, MatchRegex:
		return true
	}
	return false
}

// DictionaryScope restricts where a dictionary rule applies.
type DictionaryScope string

const (
	// DictionaryScopeGlobal applies the rule to every field.
	DictionaryScopeGlobal DictionaryScope = "global"
	// DictionaryScopeFieldKey applies the rule to a single field key.
	DictionaryScopeFieldKey DictionaryScope = "field_key"
	// DictionaryScopeVendor applies the rule to vendor identity fields.
	DictionaryScopeVendor DictionaryScope = "vendor"
	// DictionaryScopeName applies the rule to name fields.
	DictionaryScopeName DictionaryScope = "name"
)

// Valid reports whether the dictionary scope is a known value.
func (d DictionaryScope) Valid() bool {
	switch d {
	case DictionaryScopeGlobal, DictionaryScopeFieldKey, DictionaryScopeVendor, DictionaryScopeName:
		return true
	}
	return false
}

// ExportFormat identifies the output format of a session export.
type ExportFormat string

const (
	// ExportCSVBundle exports one CSV file per table, zipped.
	ExportCSVBundle ExportFormat = "csv_bundle"
	// ExportXLSX exports a single spreadsheet workbook.
	ExportXLSX ExportFormat = "xlsx"
	// ExportJSON exports a structured JSON document.
	ExportJSON ExportFormat = "json"
)

// Valid reports whether the export format is a known value.
func (e ExportFormat) Valid() bool {
	switch e {
	case ExportCSVBundle, ExportXLSX, ExportJSON:
		return true
	}
	return false
}

// ValidationRuleScope selects which validation rules a run evaluates.
type ValidationRuleScope string

const (
	// ValidationRulesAll evaluates every rule.
	ValidationRulesAll ValidationRuleScope = "all"
	// ValidationRulesChangedOnly evaluates rules touching changed values.
	ValidationRulesChangedOnly ValidationRuleScope = "changed_only"
)

// Valid reports whether the rule scope is a known value.
func (v ValidationRuleScope) Valid() bool {
	switch v {
	case ValidationRulesAll, ValidationRulesChangedOnly:
		return true
	}
	return false
}
