package importer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// fieldAliases binds one canonical field to the header spellings that
// resolve to it. Patterns are matched case-insensitively against the cleaned
// header; `[\s_.-]*` keeps them tolerant of whitespace and separators.
type fieldAliases struct {
	Field    Field
	Patterns []*regexp.Regexp
}

func aliases(f Field, exprs ...string) fieldAliases {
	fa := fieldAliases{Field: f}
	for _, e := range exprs {
		fa.Patterns = append(fa.Patterns, regexp.MustCompile(`(?i)^\s*(?:`+e+`)\s*$`))
	}
	return fa
}

// aliasTable is evaluated in declaration order: the first field whose pattern
// matches a header wins. Order is deliberate so that a header resolves to the
// closest field, not the last one to claim it ("Prénom" must hit first_name
// before the generic name patterns of full_name can see it).
var aliasTable = []fieldAliases{
	aliases(FieldFirstName,
		`pr[ée]noms?`,
		`first[\s_.-]*name`,
		`given[\s_.-]*name`,
		`forename`,
	),
	aliases(FieldLastName,
		`noms?`,
		`nom[\s_.-]*de[\s_.-]*famille`,
		`last[\s_.-]*name`,
		`surname`,
		`family[\s_.-]*name`,
	),
	aliases(FieldFullName,
		`nom[\s_.-]*complet`,
		`full[\s_.-]*name`,
		`name`,
		`contact`,
	),
	aliases(FieldEmail,
		`e?[\s_.-]*mail`,
		`courriels?`,
		`adresse[\s_.-]*e?[\s_.-]*mail`,
		`e?mail[\s_.-]*address`,
	),
	aliases(FieldPhone,
		`t[ée]l[ée]phone`,
		`t[ée]l\.?`,
		`phone(?:[\s_.-]*number)?`,
		`mobile`,
		`portable`,
		`num[ée]ro`,
	),
	aliases(FieldCompany,
		`soci[ée]t[ée]`,
		`entreprise`,
		`company`,
		`organi[sz]ation`,
	),
	aliases(FieldFormation,
		`formations?(?:[\s_.-]*(?:souhait[ée]e?|type))?`,
		`training(?:[\s_.-]*program(?:me)?)?`,
		`programme`,
		`course`,
	),
	aliases(FieldStatus,
		`statuts?`,
		`status`,
		`[ée]tat`,
	),
	aliases(FieldCity,
		`villes?`,
		`city`,
	),
	aliases(FieldNotes,
		`notes?`,
		`commentaires?`,
		`remarques?`,
		`comments?`,
	),
}

// FieldMapping is the total mapping from header to canonical field for one
// import run. Built by inference; the caller may override entries per header
// before committing.
type FieldMapping struct {
	headers []string
	fields  map[string]Field
}

// InferMapping resolves every header against the alias table. Deterministic:
// the same headers always produce the same mapping. Unmatched headers map to
// FieldIgnore so the mapping is a total function over the input headers.
func InferMapping(headers []string) FieldMapping {
	m := FieldMapping{
		headers: append([]string(nil), headers...),
		fields:  make(map[string]Field, len(headers)),
	}

	for _, h := range headers {
		m.fields[h] = matchField(h)
	}

	return m
}

func matchField(header string) Field {
	header = strings.TrimSpace(header)
	for _, fa := range aliasTable {
		for _, p := range fa.Patterns {
			if p.MatchString(header) {
				return fa.Field
			}
		}
	}
	return FieldIgnore
}

// Headers returns the mapped headers in input order.
func (m FieldMapping) Headers() []string {
	return m.headers
}

// Field returns the canonical field for a header. Unknown headers report
// FieldIgnore, preserving totality for caller-supplied names.
func (m FieldMapping) Field(header string) Field {
	if f, ok := m.fields[header]; ok {
		return f
	}
	return FieldIgnore
}

// Override replaces the inferred field for one header. Returns an error for
// headers that were not part of the parsed file, so a stale override from the
// wizard cannot silently vanish.
func (m FieldMapping) Override(header string, f Field) error {
	if _, ok := m.fields[header]; !ok {
		return fmt.Errorf("unknown header %q", header)
	}
	m.fields[header] = f
	return nil
}

// Resolves reports whether any header maps to the given field.
func (m FieldMapping) Resolves(f Field) bool {
	for _, got := range m.fields {
		if got == f {
			return true
		}
	}
	return false
}

// HasIdentityField reports whether the mapping resolves at least one
// identifying field (a name component or a contact channel). Runs without
// one are rejected before any write.
func (m FieldMapping) HasIdentityField() bool {
	return m.Resolves(FieldFirstName) || m.Resolves(FieldLastName) ||
		m.Resolves(FieldFullName) || m.Resolves(FieldEmail) || m.Resolves(FieldPhone)
}

// Warnings lists fields claimed by more than one header. Row transformation
// resolves those last-write-wins in header order; the warning makes the
// collision visible instead of silent.
func (m FieldMapping) Warnings() []string {
	byField := make(map[Field][]string)
	for _, h := range m.headers {
		f := m.fields[h]
		if f == FieldIgnore {
			continue
		}
		byField[f] = append(byField[f], h)
	}

	var warnings []string
	for f, hs := range byField {
		if len(hs) > 1 {
			warnings = append(warnings,
				fmt.Sprintf("headers %s all map to %s; the rightmost column wins", strings.Join(quoteAll(hs), ", "), f))
		}
	}
	sort.Strings(warnings)
	return warnings
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// AsMap exposes the mapping for API responses.
func (m FieldMapping) AsMap() map[string]Field {
	out := make(map[string]Field, len(m.fields))
	for h, f := range m.fields {
		out[h] = f
	}
	return out
}
