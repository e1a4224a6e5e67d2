package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/unittypes"
)

func newUnitFixture(t *testing.T) (*gorm.DB, *UnitService, *models.Organization) {
	t.Helper()

	db := openServiceTestDB(t)
	svc, err := NewUnitService(db, nil)
	require.NoError(t, err)
	return db, svc, seedOrg(t, db, "Unit Fixture School")
}

func TestUnitCreateAppliesTypeDefaults(t *testing.T) {
	_, svc, org := newUnitFixture(t)

	unit, err := svc.Create(context.Background(), org.ID, CreateUnitInput{
		Name: "Form One",
		Type: models.UnitTypeClass,
	})
	require.NoError(t, err)
	require.Equal(t, 1, unit.SchemaVersion)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(unit.Metadata, &payload))
	require.Equal(t, "1", payload["grade"])
}

func TestUnitCreateRejectsInvalidMetadata(t *testing.T) {
	_, svc, org := newUnitFixture(t)

	_, err := svc.Create(context.Background(), org.ID, CreateUnitInput{
		Name:     "Broken",
		Type:     models.UnitTypeClass,
		Metadata: map[string]any{"grade": 7},
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), org.ID, CreateUnitInput{
		Name: "Mystery",
		Type: models.UnitType("dojo"),
	})
	require.Error(t, err)
}

func TestUnitCreateRequiresExistingParent(t *testing.T) {
	_, svc, org := newUnitFixture(t)

	_, err := svc.Create(context.Background(), org.ID, CreateUnitInput{
		Name:     "Orphan",
		Type:     models.UnitTypeClass,
		ParentID: strPtr("no-such-unit"),
	})
	require.ErrorIs(t, err, ErrUnitNotFound)
}

func TestUnitMoveRejectsCycles(t *testing.T) {
	_, svc, org := newUnitFixture(t)

	ctx := context.Background()
	root, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "Sciences", Type: models.UnitTypeDepartment})
	require.NoError(t, err)
	child, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "Physics", Type: models.UnitTypeSubject, ParentID: &root.ID})
	require.NoError(t, err)

	_, err = svc.Move(ctx, org.ID, root.ID, &child.ID)
	require.Error(t, err)

	// Promoting to a root is always allowed.
	moved, err := svc.Move(ctx, org.ID, child.ID, nil)
	require.NoError(t, err)
	require.Nil(t, moved.ParentID)
}

func TestUnitMoveRejectsCrossOrgParent(t *testing.T) {
	db, svc, org := newUnitFixture(t)

	ctx := context.Background()
	other := seedOrg(t, db, "Other School")
	foreign, err := svc.Create(ctx, other.ID, CreateUnitInput{Name: "Foreign Dept", Type: models.UnitTypeDepartment})
	require.NoError(t, err)
	local, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "Local Dept", Type: models.UnitTypeDepartment})
	require.NoError(t, err)

	_, err = svc.Move(ctx, org.ID, local.ID, &foreign.ID)
	require.Error(t, err)
}

func TestUnitDescendantsOrder(t *testing.T) {
	_, svc, org := newUnitFixture(t)

	ctx := context.Background()
	root, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "Root", Type: models.UnitTypeDepartment})
	require.NoError(t, err)
	a, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "A", Type: models.UnitTypeSubject, ParentID: &root.ID})
	require.NoError(t, err)
	a1, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "A1", Type: models.UnitTypeClass, ParentID: &a.ID})
	require.NoError(t, err)
	b, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "B", Type: models.UnitTypeSubject, ParentID: &root.ID})
	require.NoError(t, err)

	descendants, err := svc.Descendants(ctx, org.ID, root.ID)
	require.NoError(t, err)

	ids := make([]string, 0, len(descendants))
	for _, u := range descendants {
		ids = append(ids, u.ID)
	}
	require.Equal(t, []string{a.ID, a1.ID, b.ID}, ids)
}

func TestUnitDeleteCascade(t *testing.T) {
	db, svc, org := newUnitFixture(t)

	ctx := context.Background()
	root, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "Root", Type: models.UnitTypeDepartment})
	require.NoError(t, err)
	_, err = svc.Create(ctx, org.ID, CreateUnitInput{Name: "Child", Type: models.UnitTypeSubject, ParentID: &root.ID})
	require.NoError(t, err)

	require.Error(t, svc.Delete(ctx, org.ID, root.ID, false))

	require.NoError(t, svc.Delete(ctx, org.ID, root.ID, true))

	var count int64
	require.NoError(t, db.Model(&models.OrgUnit{}).Where("org_id = ?", org.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestUnitEffectiveFeaturesMergesOverrides(t *testing.T) {
	_, svc, org := newUnitFixture(t)

	ctx := context.Background()
	unit, err := svc.Create(ctx, org.ID, CreateUnitInput{
		Name: "Chess Club",
		Type: models.UnitTypeClub,
	})
	require.NoError(t, err)

	features, err := svc.EffectiveFeatures(ctx, org.ID, unit.ID)
	require.NoError(t, err)
	require.True(t, features[unittypes.FeatureAttendance])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(unit.Metadata, &payload))
	payload["features"] = map[string]any{string(unittypes.FeatureAttendance): false}

	_, err = svc.Update(ctx, org.ID, unit.ID, UpdateUnitInput{Metadata: payload})
	require.NoError(t, err)

	features, err = svc.EffectiveFeatures(ctx, org.ID, unit.ID)
	require.NoError(t, err)
	require.False(t, features[unittypes.FeatureAttendance])
}

func TestUnitTreeNestsChildren(t *testing.T) {
	_, svc, org := newUnitFixture(t)

	ctx := context.Background()
	root, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "Root", Type: models.UnitTypeDepartment})
	require.NoError(t, err)
	child, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "Child", Type: models.UnitTypeSubject, ParentID: &root.ID})
	require.NoError(t, err)
	lone, err := svc.Create(ctx, org.ID, CreateUnitInput{Name: "Lone", Type: models.UnitTypeDepartment})
	require.NoError(t, err)

	tree, err := svc.Tree(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	require.Equal(t, root.ID, tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, child.ID, tree[0].Children[0].ID)
	require.Equal(t, lone.ID, tree[1].ID)
	require.Empty(t, tree[1].Children)
}
