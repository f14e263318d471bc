package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderStatusWritesPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, engine.RenderStatus(rr, http.StatusForbidden, "pages/denied.html", TemplateData{Title: "Access denied"}))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Access denied")
}

func TestRenderUnknownTemplateWritesNothing(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	assert.Error(t, engine.Render(rr, "pages/missing.html", TemplateData{}))
	assert.Zero(t, rr.Body.Len())
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "Super Admin", RoleLabel("super_admin"))
	assert.Equal(t, "Engineer", RoleLabel("engineer"))
}
