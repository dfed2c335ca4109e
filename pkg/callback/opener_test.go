package callback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubOpener(schemes []string, installed bool) (*ExecOpener, *[]string) {
	var ran []string
	o := NewExecOpener("", schemes)
	o.lookPath = func(name string) (string, error) {
		if !installed {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}
	o.run = func(_ context.Context, name string, args ...string) error {
		ran = append(ran, name+" "+args[0])
		return nil
	}
	return o, &ran
}

func TestExecOpenerCanOpen(t *testing.T) {
	ctx := context.Background()

	o, _ := stubOpener([]string{" HTTPS ", "app"}, true)
	assert.Equal(t, DefaultOpenCommand, o.Command)
	assert.Equal(t, []string{"https", "app"}, o.Schemes)

	ok, err := o.CanOpen(ctx, "https://example.com/cb")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = o.CanOpen(ctx, "APP://cb")
	assert.True(t, ok)

	ok, _ = o.CanOpen(ctx, "ftp://example.com")
	assert.False(t, ok)

	ok, _ = o.CanOpen(ctx, "no scheme")
	assert.False(t, ok)

	missing, _ := stubOpener(nil, false)
	ok, err = missing.CanOpen(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecOpenerOpen(t *testing.T) {
	o, ran := stubOpener([]string{"app"}, true)
	require.NoError(t, o.Open(context.Background(), "app://cb?id=1"))
	assert.Equal(t, []string{"xdg-open app://cb?id=1"}, *ran)

	assert.ErrorIs(t, o.Open(context.Background(), "https://elsewhere"), errSchemeNotAllowed)
}
