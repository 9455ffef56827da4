package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-admin/vantage-admin/internal/shared"
)

func TestNewEngineParsesEmbeddedTemplates(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	require.NotNil(t, engine)
}

func TestRenderExecutesNamedTemplate(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, "pages/unauthorized.html", TemplateData{
		Title:       "Forbidden",
		CurrentPath: "/unauthorized",
		Principal:   &shared.Principal{ID: 1, Name: "Ana"},
	})
	require.NoError(t, err)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Body.String())
}

func TestRenderUnknownTemplateFails(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.Error(t, engine.Render(rec, "pages/missing.html", TemplateData{}))
}
