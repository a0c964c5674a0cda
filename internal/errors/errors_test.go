package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("非法故事ID", nil), http.StatusBadRequest},
		{"not found", NewResourceNotFoundError("story", "Script not found"), http.StatusNotFound},
		{"processing", NewProcessingError("读取失败", fmt.Errorf("io")), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestResourceNotFoundCodes(t *testing.T) {
	assert.Equal(t, "STORY_NOT_FOUND", CodeOf(NewResourceNotFoundError("story", "x")))
	assert.Equal(t, "ASSET_NOT_FOUND", CodeOf(NewResourceNotFoundError("asset", "x")))
	assert.Equal(t, "CHARACTER_NOT_FOUND", CodeOf(NewResourceNotFoundError("character", "x")))
	assert.Equal(t, "NOT_FOUND", CodeOf(NewResourceNotFoundError("", "x")))
	assert.Equal(t, "INTERNAL_ERROR", CodeOf(fmt.Errorf("plain")))
}

func TestWrapErrorKeepsType(t *testing.T) {
	base := NewResourceNotFoundError("asset", "Asset not found: bg.png")
	wrapped := WrapError(base, "加载失败", ErrorTypeError)

	assert.True(t, IsNotFoundError(wrapped))
	assert.Equal(t, "ASSET_NOT_FOUND", CodeOf(wrapped))
	assert.Contains(t, wrapped.Error(), "Asset not found: bg.png")

	assert.Nil(t, WrapError(nil, "noop", ErrorTypeError))
	assert.True(t, IsValidationError(WrapError(fmt.Errorf("x"), "bad", ErrorTypeValidation)))
}

func TestMessageOf(t *testing.T) {
	err := NewProcessingError("加载章节失败", fmt.Errorf("disk"))
	assert.Equal(t, "加载章节失败", MessageOf(err))
	assert.Equal(t, "plain", MessageOf(fmt.Errorf("plain")))
}
