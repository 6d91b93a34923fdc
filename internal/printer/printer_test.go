package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevNoColor := Output, color.NoColor
	Output, color.NoColor = &buf, true
	t.Cleanup(func() { Output, color.NoColor = prevOut, prevNoColor })
	return &buf
}

func TestSuccessPrefix(t *testing.T) {
	buf := capture(t)
	Success("migrated %s", "postgres")
	Success("✓ already prefixed")
	assert.Equal(t, "✓ migrated postgres\n✓ already prefixed\n", buf.String())
}

func TestTemplate(t *testing.T) {
	buf := capture(t)
	Template(model.NewTemplate("g1", "zvz", "org", []string{"Tank", "Healer"}))
	assert.Equal(t, "zvz (2 roles)\n  Party 1\n     1. Tank\n     2. Healer\n", buf.String())
}

func TestErrorReturnsTitle(t *testing.T) {
	err := Error("config invalid", "bad driver", "use postgres", "use sqlite")
	assert.EqualError(t, err, "config invalid")
}
