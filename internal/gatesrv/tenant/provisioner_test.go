package tenant

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var schemaNamePattern = regexp.MustCompile(`^tenant_[0-9a-f]{32}_[a-z0-9_]+$`)

func TestNewSchemaName(t *testing.T) {
	name := NewSchemaName("myapp")
	assert.Regexp(t, schemaNamePattern, name)
	assert.True(t, strings.HasSuffix(name, "_myapp"))
}

func TestNewSchemaNameSanitizes(t *testing.T) {
	name := NewSchemaName("My App! (prod)")
	assert.Regexp(t, schemaNamePattern, name)
	assert.True(t, strings.HasSuffix(name, "_my_app___prod_"))
}

func TestNewSchemaNameUnique(t *testing.T) {
	assert.NotEqual(t, NewSchemaName("app"), NewSchemaName("app"))
}

func TestNewSchemaNameEmpty(t *testing.T) {
	assert.Regexp(t, schemaNamePattern, NewSchemaName(""))
}

func TestNewSchemaNameLongNamesTruncated(t *testing.T) {
	name := NewSchemaName(strings.Repeat("a", 200))
	assert.Regexp(t, schemaNamePattern, name)
	// tenant_ + 32 hex + _ + at most 50 name chars.
	assert.LessOrEqual(t, len(name), len("tenant_")+32+1+50)
}
