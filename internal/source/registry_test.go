package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

type stubSource struct{ name string }

func (s stubSource) Name() string { return s.name }

func (s stubSource) ListRecent(context.Context, int) ([]domain.Document, error) { return nil, nil }

func (s stubSource) GetDocument(context.Context, string) (domain.Document, error) {
	return domain.Document{}, nil
}

func (s stubSource) FetchBlocks(context.Context, string) ([]domain.Block, error) { return nil, nil }

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubSource{name: "notion"})
	reg.Register(stubSource{name: "directory"})

	got, err := reg.Resolve("directory")
	require.NoError(t, err)
	assert.Equal(t, "directory", got.Name())
	assert.Equal(t, []string{"directory", "notion"}, reg.Names())

	_, err = reg.Resolve("confluence")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "confluence")
}

func TestRegisterReplaces(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(stubSource{name: "notion"})
	reg.Register(stubSource{name: "notion"})
	assert.Len(t, reg.Names(), 1)
}
