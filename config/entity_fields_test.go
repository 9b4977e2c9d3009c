package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/posalpro_end/models"
)

func TestDefaultEntityFieldTable(t *testing.T) {
	table := MustDefaultEntityFieldTable()

	assert.Equal(t, []string{EntityCustomer, EntityHealth, EntityProduct, EntityProposal, EntityUser}, table.EntityTypes())

	health, ok := table.Lookup(EntityHealth)
	require.True(t, ok)
	assert.Len(t, health.AllowedFields(), 9)
	assert.False(t, health.RequiresAuth())
	assert.Equal(t, DefaultOwnerField, health.OwnerField())

	user, ok := table.Lookup(EntityUser)
	require.True(t, ok)
	assert.True(t, user.IsSelfAccessOnly("email"))
	assert.True(t, user.IsRestricted("status"))
	assert.False(t, user.IsAllowed("password"))
	assert.Equal(t, "id", user.OwnerField())

	_, ok = table.Lookup("nonexistent_entity")
	assert.False(t, ok)
}

func TestAllowedFieldsAreCaseSensitive(t *testing.T) {
	table := MustDefaultEntityFieldTable()
	health, _ := table.Lookup(EntityHealth)

	assert.True(t, health.IsAllowed("status"))
	assert.False(t, health.IsAllowed("Status"))
	assert.False(t, health.IsAllowed(" status"))
}

func TestAllowedFieldsCopyIsDetached(t *testing.T) {
	table := MustDefaultEntityFieldTable()
	health, _ := table.Lookup(EntityHealth)

	fields := health.AllowedFields()
	fields[0] = "password"

	assert.False(t, health.IsAllowed("password"))
	assert.Equal(t, "status", health.AllowedFields()[0])
}

func TestNewEntityFieldTableRejectsSecurityFieldsOutsideAllowList(t *testing.T) {
	t.Run("restricted", func(t *testing.T) {
		_, err := NewEntityFieldTable(map[string]models.EntityFieldConfig{
			"widget": {
				AllowedFields: []string{"name"},
				Security:      models.FieldSecurity{RestrictedFields: []string{"secret"}},
			},
		})
		require.Error(t, err)
	})

	t.Run("self access", func(t *testing.T) {
		_, err := NewEntityFieldTable(map[string]models.EntityFieldConfig{
			"widget": {
				AllowedFields: []string{"name"},
				Security:      models.FieldSecurity{SelfAccessOnly: []string{"email"}},
			},
		})
		require.Error(t, err)
	})

	t.Run("duplicate allowed fields collapse", func(t *testing.T) {
		table, err := NewEntityFieldTable(map[string]models.EntityFieldConfig{
			"widget": {AllowedFields: []string{"name", "name", "size"}},
		})
		require.NoError(t, err)
		w, _ := table.Lookup("widget")
		assert.Equal(t, []string{"name", "size"}, w.AllowedFields())
	})
}

func TestLoadEntityFieldTable(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		table, err := LoadEntityFieldTable("")
		require.NoError(t, err)
		_, ok := table.Lookup(EntityProposal)
		assert.True(t, ok)
	})

	t.Run("file overrides and extends", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fields.yaml")
		content := `
entities:
  health:
    allowedFields: [status, version]
  invoice:
    allowedFields: [id, number, total, ownerId]
    security:
      requiresAuth: true
      minRole: MANAGER
      restrictedFields: [total]
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		table, err := LoadEntityFieldTable(path)
		require.NoError(t, err)

		health, _ := table.Lookup(EntityHealth)
		assert.Equal(t, []string{"status", "version"}, health.AllowedFields())

		invoice, ok := table.Lookup("invoice")
		require.True(t, ok)
		assert.True(t, invoice.RequiresAuth())
		assert.Equal(t, models.UserRoleMANAGER, invoice.MinRole())
		assert.True(t, invoice.IsRestricted("total"))

		_, ok = table.Lookup(EntityUser)
		assert.True(t, ok, "entities not in the file keep their defaults")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadEntityFieldTable(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("entities: [::"), 0o600))
		_, err := LoadEntityFieldTable(path)
		assert.Error(t, err)
	})
}

// 白名单字段必须是存储文档中真实存在的字段，否则投影会悄悄返回空值
func TestAllowListsMatchStoredDocuments(t *testing.T) {
	docs := map[string]interface{}{
		EntityProposal: models.Proposal{},
		EntityCustomer: models.Customer{},
		EntityProduct:  models.Product{},
		EntityUser:     models.User{},
	}

	table := MustDefaultEntityFieldTable()
	for entity, doc := range docs {
		t.Run(entity, func(t *testing.T) {
			tags := jsonTags(reflect.TypeOf(doc))
			e, ok := table.Lookup(entity)
			require.True(t, ok)
			for _, f := range e.AllowedFields() {
				assert.Contains(t, tags, f)
			}
			assert.NotContains(t, e.AllowedFields(), "password")
		})
	}
}

func jsonTags(typ reflect.Type) []string {
	var tags []string
	for i := 0; i < typ.NumField(); i++ {
		name := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
		if name != "" && name != "-" {
			tags = append(tags, name)
		}
	}
	return tags
}
