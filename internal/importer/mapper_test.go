package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferMapping(t *testing.T) {
	tests := []struct {
		header string
		want   Field
	}{
		{"Prénom", FieldFirstName},
		{"prenom", FieldFirstName},
		{"First Name", FieldFirstName},
		{"first_name", FieldFirstName},
		{"Nom", FieldLastName},
		{"Nom de famille", FieldLastName},
		{"Surname", FieldLastName},
		{"Nom complet", FieldFullName},
		{"Full Name", FieldFullName},
		{"Name", FieldFullName},
		{"Contact", FieldFullName},
		{"Email", FieldEmail},
		{"E-mail", FieldEmail},
		{"Courriel", FieldEmail},
		{"Adresse email", FieldEmail},
		{"Téléphone", FieldPhone},
		{"Tél.", FieldPhone},
		{"Phone Number", FieldPhone},
		{"Mobile", FieldPhone},
		{"Société", FieldCompany},
		{"Entreprise", FieldCompany},
		{"Company", FieldCompany},
		{"Formation", FieldFormation},
		{"Formation souhaitée", FieldFormation},
		{"Training Program", FieldFormation},
		{"Statut", FieldStatus},
		{"Status", FieldStatus},
		{"Ville", FieldCity},
		{"City", FieldCity},
		{"Notes", FieldNotes},
		{"Commentaires", FieldNotes},
		{"Random Header", FieldIgnore},
		{"", FieldIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			m := InferMapping([]string{tt.header})
			assert.Equal(t, tt.want, m.Field(tt.header))
		})
	}
}

// "Nom" must resolve to last_name even though full_name's generic `name`
// pattern would also accept "Name"; declaration order decides ties.
func TestInferMappingOrderPriority(t *testing.T) {
	m := InferMapping([]string{"Prénom", "Nom", "Name"})

	assert.Equal(t, FieldFirstName, m.Field("Prénom"))
	assert.Equal(t, FieldLastName, m.Field("Nom"))
	assert.Equal(t, FieldFullName, m.Field("Name"))
}

func TestInferMappingTotality(t *testing.T) {
	headers := []string{"Prénom", "mystery column", "Email", "???"}
	m := InferMapping(headers)

	for _, h := range headers {
		assert.NotEqual(t, Field(""), m.Field(h), "header %q must map to something", h)
	}
	assert.Equal(t, FieldIgnore, m.Field("mystery column"))
	assert.Equal(t, FieldIgnore, m.Field("never parsed"))
}

func TestInferMappingDeterministic(t *testing.T) {
	headers := []string{"Prénom", "Nom", "Email", "Téléphone", "junk"}
	a := InferMapping(headers)
	b := InferMapping(headers)
	assert.Equal(t, a.AsMap(), b.AsMap())
}

func TestMappingOverride(t *testing.T) {
	m := InferMapping([]string{"Ref", "Email"})

	require.NoError(t, m.Override("Ref", FieldNotes))
	assert.Equal(t, FieldNotes, m.Field("Ref"))

	assert.Error(t, m.Override("Missing", FieldEmail))
}

func TestMappingHasIdentityField(t *testing.T) {
	assert.True(t, InferMapping([]string{"Prénom"}).HasIdentityField())
	assert.True(t, InferMapping([]string{"Email"}).HasIdentityField())
	assert.True(t, InferMapping([]string{"Téléphone"}).HasIdentityField())
	assert.False(t, InferMapping([]string{"Société", "Ville"}).HasIdentityField())

	m := InferMapping([]string{"x"})
	require.NoError(t, m.Override("x", FieldPhone))
	assert.True(t, m.HasIdentityField())
}

func TestMappingWarnings(t *testing.T) {
	m := InferMapping([]string{"Email", "E-mail", "Prénom"})

	warnings := m.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `"Email"`)
	assert.Contains(t, warnings[0], `"E-mail"`)

	assert.Empty(t, InferMapping([]string{"Prénom", "Email"}).Warnings())
}
