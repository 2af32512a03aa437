package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/deepq"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverrides(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "conf.json")
	fileConf := deepq.DefaultConfig()
	fileConf.EnvName = "MountainCar-v0"
	fileConf.Gamma = 0.9
	fileConf.Hidden = []int{8}
	require.NoError(t, fileConf.Save(filename))

	conf := deepq.DefaultConfig()
	fs := pflag.NewFlagSet("train", pflag.ContinueOnError)
	bindFlags(fs, &conf)
	require.NoError(t, fs.Parse([]string{"--gamma=0.5", "--hidden=16,16", "--replay=false"}))

	got, err := loadConfig(filename, fs)
	require.NoError(t, err)
	assert.Equal(t, "MountainCar-v0", got.EnvName, "unset flags keep the file value")
	assert.Equal(t, float32(0.5), got.Gamma)
	assert.Equal(t, []int{16, 16}, got.Hidden)
	assert.False(t, got.Replay)
	assert.Equal(t, fileConf.MaxIter, got.MaxIter)
}

func TestFlagsMatchConfigKeys(t *testing.T) {
	conf := deepq.DefaultConfig()
	fs := pflag.NewFlagSet("train", pflag.ContinueOnError)
	bindFlags(fs, &conf)

	b, err := json.Marshal(conf)
	require.NoError(t, err)
	var keys map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &keys))

	n := 0
	fs.VisitAll(func(*pflag.Flag) { n++ })
	assert.Equal(t, len(keys), n)
	for k := range keys {
		assert.NotNil(t, fs.Lookup(k), "no flag for config key %q", k)
	}
}
