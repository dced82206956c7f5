package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLinkRequestNormalize(t *testing.T) {
	req := &CreateLinkRequest{
		Slug:           "  docs  ",
		DestinationURL: " https://example.com ",
		Title:          "  Docs  ",
		Tags:           []string{" Team ", "INFRA"},
	}
	req.Normalize()

	assert.Equal(t, "docs", req.Slug)
	assert.Equal(t, "https://example.com", req.DestinationURL)
	assert.Equal(t, "Docs", req.Title)
	assert.Equal(t, []string{"team", "infra"}, req.Tags)
	assert.NoError(t, req.Validate())
}

func TestCreateLinkRequestValidate(t *testing.T) {
	t.Run("slug optional", func(t *testing.T) {
		req := &CreateLinkRequest{DestinationURL: "https://example.com"}
		req.Normalize()
		assert.NoError(t, req.Validate())
	})

	t.Run("destination required", func(t *testing.T) {
		req := &CreateLinkRequest{Slug: "x"}
		req.Normalize()
		assert.Error(t, req.Validate())
	})

	t.Run("bad tag rejected", func(t *testing.T) {
		req := &CreateLinkRequest{DestinationURL: "https://example.com", Tags: []string{"no spaces allowed"}}
		req.Normalize()
		assert.Error(t, req.Validate())
	})
}

func TestUpdateLinkRequestValidate(t *testing.T) {
	t.Run("all nil rejected", func(t *testing.T) {
		req := &UpdateLinkRequest{}
		req.Normalize()
		assert.Error(t, req.Validate())
	})

	t.Run("single field ok", func(t *testing.T) {
		title := "New title"
		req := &UpdateLinkRequest{Title: &title}
		req.Normalize()
		assert.NoError(t, req.Validate())
	})

	t.Run("bad slug rejected", func(t *testing.T) {
		slug := "not ok"
		req := &UpdateLinkRequest{Slug: &slug}
		req.Normalize()
		assert.Error(t, req.Validate())
	})

	t.Run("normalize trims set fields", func(t *testing.T) {
		slug := "  fresh  "
		req := &UpdateLinkRequest{Slug: &slug}
		req.Normalize()
		require.NotNil(t, req.Slug)
		assert.Equal(t, "fresh", *req.Slug)
	})
}

func TestCreateTagRequest(t *testing.T) {
	req := &CreateTagRequest{Name: "  TeAm  "}
	req.Normalize()
	assert.Equal(t, "team", req.Name)
	assert.NoError(t, req.Validate())

	req = &CreateTagRequest{Name: "!!"}
	req.Normalize()
	assert.Error(t, req.Validate())
}

func TestCreateAPIKeyRequest(t *testing.T) {
	req := &CreateAPIKeyRequest{Owner: " ops ", Name: " ci "}
	req.Normalize()
	assert.Equal(t, "ops", req.Owner)
	assert.Equal(t, "ci", req.Name)
	assert.NoError(t, req.Validate())

	req = &CreateAPIKeyRequest{Name: "ci"}
	req.Normalize()
	assert.Error(t, req.Validate())

	req = &CreateAPIKeyRequest{Owner: "ops"}
	req.Normalize()
	assert.Error(t, req.Validate())
}
