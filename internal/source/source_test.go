package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/config"
)

func TestPatternNamer(t *testing.T) {
	namer := PatternNamer("matriz_{season}.parquet")
	assert.Equal(t, "matriz_2020-2021.parquet", namer("2020-2021"))
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s_2020-2021.csv"), []byte("a\n1\n"), 0o644))

	src := NewDirSource(dir, PatternNamer("s_{season}.csv"))

	data, err := src.Fetch(context.Background(), "2020-2021")
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(data))
	assert.Equal(t, "s_2020-2021.csv", src.Name("2020-2021"))

	_, err = src.Fetch(context.Background(), "1999-2000")
	assert.True(t, errors.Is(err, ErrNotFound))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx, "2020-2021")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/m_2020-2021.parquet":
			_, _ = w.Write([]byte("PAR1"))
		case "/data/m_2021-2022.parquet":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/data", PatternNamer("m_{season}.parquet"), HTTPOptions{})

	data, err := src.Fetch(context.Background(), "2020-2021")
	require.NoError(t, err)
	assert.Equal(t, []byte("PAR1"), data)

	_, err = src.Fetch(context.Background(), "2019-2020")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(context.Background(), "2021-2022")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPSource_RejectsOversizedPartition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, PatternNamer("{season}.csv"), HTTPOptions{MaxBytes: 7})
	_, err := src.Fetch(context.Background(), "2020-2021")
	assert.ErrorIs(t, err, ErrTooLarge)

	src = NewHTTPSource(srv.URL, PatternNamer("{season}.csv"), HTTPOptions{MaxBytes: 8})
	data, err := src.Fetch(context.Background(), "2020-2021")
	require.NoError(t, err)
	assert.Len(t, data, 8)
}

func TestHTTPSource_DeadlineExceeded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src := NewHTTPSource(srv.URL, PatternNamer("{season}.csv"), HTTPOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx, "2020-2021")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew(t *testing.T) {
	cfg := config.Default().Source

	cfg.Kind = "dir"
	cfg.Dir = t.TempDir()
	src, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &DirSource{}, src)

	cfg.Kind = "http"
	src, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)
	assert.Equal(t,
		config.DefaultBaseURL+"matriz_de_dados_credito_rural_2020-2021.parquet",
		src.(*HTTPSource).URL("2020-2021"))

	cfg.Kind = "ftp"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
