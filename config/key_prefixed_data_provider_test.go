/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPrefixedSourceConfigYAML = `
myPrefix:
  source:
    name: antivirus
    weight: 30
    labels:
      team: av
      env: prod
`

func TestKeyPrefixedDataProvider_GetString(t *testing.T) {
	var dp DataProvider = NewKeyPrefixedDataProvider(NewViperAdapter(), "myPrefix")
	err := dp.SetFromReader(bytes.NewBufferString(testPrefixedSourceConfigYAML), DataTypeYAML)
	require.NoError(t, err)

	name, err := dp.GetString("source.name")
	require.NoError(t, err)
	require.Equal(t, "antivirus", name)

	weight, err := dp.GetInt("source.weight")
	require.NoError(t, err)
	require.Equal(t, 30, weight)

	labelEnv, err := dp.GetString("source.labels.env")
	require.NoError(t, err)
	require.Equal(t, "prod", labelEnv)

	labelTeam, err := dp.GetString("source.labels.team")
	require.NoError(t, err)
	require.Equal(t, "av", labelTeam)
}

func TestKeyPrefixedDataProvider_Unmarshal(t *testing.T) {
	type cfg struct {
		Source struct {
			Name   string `mapstructure:"name"`
			Weight int    `mapstructure:"weight"`
			Labels struct {
				Team string `mapstructure:"team"`
				Env  string `mapstructure:"env"`
			} `mapstructure:"labels"`
		} `mapstructure:"source"`
	}

	var dp DataProvider = NewKeyPrefixedDataProvider(NewViperAdapter(), "myPrefix")
	err := dp.SetFromReader(bytes.NewBufferString(testPrefixedSourceConfigYAML), DataTypeYAML)
	require.NoError(t, err)

	c := cfg{}
	err = dp.Unmarshal(&c)
	require.NoError(t, err)

	require.Equal(t, "antivirus", c.Source.Name)
	require.Equal(t, 30, c.Source.Weight)
	require.Equal(t, "av", c.Source.Labels.Team)
	require.Equal(t, "prod", c.Source.Labels.Env)
}
