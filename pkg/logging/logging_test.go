package logging

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/mfreeman451/meshradar/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshradar.log")

	closer := Setup(&config.LoggingConfig{File: path, MaxSizeMB: 1})
	log.Printf("hello from the collector")
	require.NoError(t, closer.Close())

	Setup(nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the collector")
}

func TestSetupStderr(t *testing.T) {
	closer := Setup(&config.LoggingConfig{})
	assert.NoError(t, closer.Close())
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 7, orDefault(0, 7))
	assert.Equal(t, 3, orDefault(3, 7))
}
