package uihints

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmutisya/shuledesk/internal/models"
)

func TestLookup(t *testing.T) {
	hint, ok := Lookup(models.OrgTypeSchool, "academic_year")
	require.True(t, ok)
	require.Equal(t, WidgetText, hint.Widget)
	require.Equal(t, FormatAcademicYear, hint.Format)
	require.Equal(t, "academics", hint.Group)

	hint, ok = Lookup(models.OrgTypeNGO, "registration_no")
	require.True(t, ok)
	require.Equal(t, TransformUppercase, hint.Transform)

	_, ok = Lookup(models.OrgTypeSchool, "registration_no")
	require.False(t, ok)

	_, ok = Lookup(models.OrgType("circus"), "email")
	require.False(t, ok)
}

func TestGroupsOrdering(t *testing.T) {
	groups := Groups(models.OrgTypeSchool)
	require.Len(t, groups, 3)
	require.Equal(t, "academics", groups[0].Name)
	require.Equal(t, "contact", groups[1].Name)
	require.Equal(t, "profile", groups[2].Name)

	academics := groups[0]
	fields := make([]string, 0, len(academics.Fields))
	for _, h := range academics.Fields {
		fields = append(fields, h.Field)
	}
	require.Equal(t, []string{"board", "medium", "academic_year", "grades_offered"}, fields)
}

func TestGroupsUnknownType(t *testing.T) {
	require.Nil(t, Groups(models.OrgType("circus")))
}

func TestEveryOrgTypeHasHints(t *testing.T) {
	for _, orgType := range models.OrgTypes {
		require.NotEmpty(t, Groups(orgType), "expected ui hints for %s", orgType)
	}
}
